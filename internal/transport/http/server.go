// Package http exposes the matching engine's command API over gin: order
// submission/mutation, book snapshots, and JWT-protected admin actions.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nexustrade/lobengine/internal/ingress"
	"github.com/nexustrade/lobengine/internal/matching"
	"github.com/nexustrade/lobengine/internal/version"
	"github.com/nexustrade/lobengine/pkg/apierr"
	"github.com/nexustrade/lobengine/pkg/interfaces"
	"github.com/nexustrade/lobengine/pkg/lob"
)

// Server wires the matching engine behind a gin router.
type Server struct {
	engine            *gin.Engine
	manager           *matching.Manager
	gateway           *ingress.Gateway
	validate          *validator.Validate
	snapshots         *cache.Cache
	jwtSecret         []byte
	adminPasswordHash []byte
	metrics           interfaces.Metrics
	logger            *zap.Logger
}

// New constructs a Server for manager, rate-limited to ratePerSecond
// requests/IP and authenticating admin routes with jwtSecret. Order
// submission is sharded through gateway by symbol ID, so symbols on
// different shards do not queue behind each other. adminPasswordHash is a bcrypt hash checked by
// /v1/admin/login before a JWT is issued. metrics may be nil, in which case
// rejection counting is skipped.
func New(manager *matching.Manager, gateway *ingress.Gateway, jwtSecret, adminPasswordHash []byte, ratePerSecond int64, metrics interfaces.Metrics, logger *zap.Logger) *Server {
	s := &Server{
		engine:            gin.New(),
		manager:           manager,
		gateway:           gateway,
		validate:          validator.New(),
		snapshots:         cache.New(2*time.Second, 10*time.Second),
		jwtSecret:         jwtSecret,
		adminPasswordHash: adminPasswordHash,
		metrics:           metrics,
		logger:            logger,
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(cors.Default())
	s.engine.Use(requestID())
	s.engine.Use(checkAPIVersion())

	rate := limiter.Rate{Period: time.Second, Limit: ratePerSecond}
	store := memory.NewStore()
	s.engine.Use(mgin.NewMiddleware(limiter.New(store, rate)))

	s.routes()
	return s
}

// requestID stamps every request with an X-Request-Id header so client and
// server logs can be correlated for one call.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-Id", id)
		c.Next()
	}
}

// checkAPIVersion rejects a request carrying an X-Api-Version header this
// build can't serve, so a client built against an incompatible version
// fails fast instead of hitting subtly wrong behavior. Clients that omit
// the header are assumed compatible.
func checkAPIVersion() gin.HandlerFunc {
	return func(c *gin.Context) {
		requested := c.GetHeader("X-Api-Version")
		if requested == "" {
			c.Next()
			return
		}
		ok, err := version.Negotiate(requested)
		if err != nil || !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, apierr.New(apierr.CodeInvalidInput, "unsupported client API version "+requested))
			return
		}
		c.Next()
	}
}

func (s *Server) routes() {
	v1 := s.engine.Group("/v1")
	v1.POST("/orders", s.handleAddOrder)
	v1.DELETE("/orders/:id", s.handleDeleteOrder)
	v1.PATCH("/orders/:id/reduce", s.handleReduceOrder)
	v1.PATCH("/orders/:id/modify", s.handleModifyOrder)
	v1.GET("/books/:symbolId/snapshot", s.handleSnapshot)

	admin := v1.Group("/admin")
	admin.POST("/login", s.handleLogin)
	protected := admin.Group("", s.requireJWT)
	protected.POST("/symbols", s.handleAddSymbol)
	protected.POST("/symbols/:symbolId/book", s.handleAddOrderBook)
	protected.POST("/matching/enable", s.handleEnableMatching)
	protected.POST("/matching/disable", s.handleDisableMatching)
}

// Handler returns the underlying http.Handler for use with net/http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleLogin checks the admin password against adminPasswordHash and
// mints a short-lived HS256 JWT for use against the protected admin routes.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Wrap(apierr.CodeInvalidInput, "invalid login payload", err))
		return
	}
	if err := bcrypt.CompareHashAndPassword(s.adminPasswordHash, []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, apierr.New(apierr.CodeUnauthorized, "invalid credentials"))
		return
	}
	claims := jwt.MapClaims{
		"sub": req.Username,
		"exp": time.Now().Add(15 * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierr.Wrap(apierr.CodeInternal, "sign token", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": signed})
}

func (s *Server) requireJWT(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if len(header) < 8 || header[:7] != "Bearer " {
		c.AbortWithStatusJSON(http.StatusUnauthorized, apierr.New(apierr.CodeUnauthorized, "missing bearer token"))
		return
	}
	token, err := jwt.Parse(header[7:], func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, apierr.New(apierr.CodeInvalidToken, "invalid or expired token"))
		return
	}
	c.Next()
}

type addOrderRequest struct {
	ID          uint64 `json:"id" binding:"required"`
	SymbolID    uint32 `json:"symbol_id" binding:"required"`
	Side        string `json:"side" binding:"required,oneof=buy sell"`
	Kind        string `json:"kind" binding:"required,oneof=market limit stop stop_limit trailing_stop trailing_stop_limit"`
	Price       uint64 `json:"price"`
	StopPrice   uint64 `json:"stop_price"`
	Quantity    uint64 `json:"quantity" binding:"required,gt=0"`
	TimeInForce string `json:"time_in_force" binding:"required,oneof=GTC IOC FOK AON"`
	MaxVisible  uint64 `json:"max_visible_quantity"`
	Slippage    uint64 `json:"slippage"`
	TrailDist   int64  `json:"trailing_distance"`
	TrailStep   int64  `json:"trailing_step"`
}

func errorKindToHTTP(code lob.ErrorKind) *apierr.Error {
	switch code {
	case lob.ErrorSymbolNotFound, lob.ErrorOrderBookNotFound, lob.ErrorOrderNotFound:
		return apierr.New(apierr.CodeNotFound, code.String())
	case lob.ErrorSymbolDuplicate, lob.ErrorOrderBookDuplicate, lob.ErrorOrderDuplicate:
		return apierr.New(apierr.CodeInvalidInput, code.String()).WithHTTPStatus(http.StatusConflict)
	default:
		return apierr.New(apierr.CodeValidationFailed, code.String())
	}
}

// recordRejection counts a rejected command by its error label, if a
// metrics sink was configured.
func (s *Server) recordRejection(label string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Counter("rejections_total", 1, map[string]string{"error": label})
}

// respondError records the rejection and writes its mapped HTTP response.
func (s *Server) respondError(c *gin.Context, code lob.ErrorKind) {
	s.recordRejection(code.String())
	httpErr := errorKindToHTTP(code)
	c.JSON(httpErr.HTTPStatus, httpErr)
}

func (s *Server) handleAddOrder(c *gin.Context) {
	var req addOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Wrap(apierr.CodeInvalidInput, "invalid order payload", err))
		return
	}
	order := toOrder(req)
	var code lob.ErrorKind
	err := s.gateway.Submit(c.Request.Context(), ingress.Command{
		SymbolID: req.SymbolID,
		Run:      func() { code = s.manager.AddOrder(order) },
	})
	if err != nil {
		s.recordRejection(string(apierr.CodeRateLimited))
		c.JSON(http.StatusTooManyRequests, apierr.Wrap(apierr.CodeRateLimited, "order submission throttled", err))
		return
	}
	if !code.OK() {
		s.respondError(c, code)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

func toOrder(req addOrderRequest) lob.Order {
	side := lob.SideBuy
	if req.Side == "sell" {
		side = lob.SideSell
	}
	tif := parseTIF(req.TimeInForce)
	kind := parseKind(req.Kind)
	maxVisible := req.MaxVisible
	if maxVisible == 0 {
		maxVisible = lob.PlainVisibleQuantity
	}

	if side == lob.SideBuy {
		switch kind {
		case lob.KindMarket:
			return lob.BuyMarket(req.ID, req.SymbolID, req.Quantity, req.Slippage, tif)
		case lob.KindStop:
			return lob.BuyStop(req.ID, req.SymbolID, req.StopPrice, req.Quantity, req.Slippage, tif)
		case lob.KindStopLimit:
			return lob.BuyStopLimit(req.ID, req.SymbolID, req.StopPrice, req.Price, req.Quantity, tif)
		case lob.KindTrailingStop:
			return lob.TrailingBuyStop(req.ID, req.SymbolID, req.StopPrice, req.Quantity, req.Slippage, tif, req.TrailDist, req.TrailStep)
		case lob.KindTrailingStopLimit:
			return lob.TrailingBuyStopLimit(req.ID, req.SymbolID, req.StopPrice, req.Price, req.Quantity, tif, req.TrailDist, req.TrailStep)
		default:
			return lob.BuyLimit(req.ID, req.SymbolID, req.Price, req.Quantity, tif, maxVisible)
		}
	}
	switch kind {
	case lob.KindMarket:
		return lob.SellMarket(req.ID, req.SymbolID, req.Quantity, req.Slippage, tif)
	case lob.KindStop:
		return lob.SellStop(req.ID, req.SymbolID, req.StopPrice, req.Quantity, req.Slippage, tif)
	case lob.KindStopLimit:
		return lob.SellStopLimit(req.ID, req.SymbolID, req.StopPrice, req.Price, req.Quantity, tif)
	case lob.KindTrailingStop:
		return lob.TrailingSellStop(req.ID, req.SymbolID, req.StopPrice, req.Quantity, req.Slippage, tif, req.TrailDist, req.TrailStep)
	case lob.KindTrailingStopLimit:
		return lob.TrailingSellStopLimit(req.ID, req.SymbolID, req.StopPrice, req.Price, req.Quantity, tif, req.TrailDist, req.TrailStep)
	default:
		return lob.SellLimit(req.ID, req.SymbolID, req.Price, req.Quantity, tif, maxVisible)
	}
}

func parseTIF(s string) lob.TimeInForce {
	switch s {
	case "IOC":
		return lob.IOC
	case "FOK":
		return lob.FOK
	case "AON":
		return lob.AON
	default:
		return lob.GTC
	}
}

func parseKind(s string) lob.Kind {
	switch s {
	case "market":
		return lob.KindMarket
	case "stop":
		return lob.KindStop
	case "stop_limit":
		return lob.KindStopLimit
	case "trailing_stop":
		return lob.KindTrailingStop
	case "trailing_stop_limit":
		return lob.KindTrailingStopLimit
	default:
		return lob.KindLimit
	}
}

func (s *Server) handleDeleteOrder(c *gin.Context) {
	id, ok := parseUint64Param(c, "id")
	if !ok {
		return
	}
	if code := s.manager.DeleteOrder(id); !code.OK() {
		s.respondError(c, code)
		return
	}
	c.Status(http.StatusNoContent)
}

type reduceRequest struct {
	Quantity uint64 `json:"quantity" binding:"required,gt=0"`
}

func (s *Server) handleReduceOrder(c *gin.Context) {
	id, ok := parseUint64Param(c, "id")
	if !ok {
		return
	}
	var req reduceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Wrap(apierr.CodeInvalidInput, "invalid reduce payload", err))
		return
	}
	if code := s.manager.ReduceOrder(id, req.Quantity); !code.OK() {
		s.respondError(c, code)
		return
	}
	c.Status(http.StatusNoContent)
}

type modifyRequest struct {
	Price    uint64 `json:"price" binding:"required"`
	Quantity uint64 `json:"quantity" binding:"required,gt=0"`
}

func (s *Server) handleModifyOrder(c *gin.Context) {
	id, ok := parseUint64Param(c, "id")
	if !ok {
		return
	}
	var req modifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Wrap(apierr.CodeInvalidInput, "invalid modify payload", err))
		return
	}
	if code := s.manager.ModifyOrder(id, req.Price, req.Quantity); !code.OK() {
		s.respondError(c, code)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSnapshot(c *gin.Context) {
	symbolID := c.Param("symbolId")
	if cached, found := s.snapshots.Get(symbolID); found {
		c.JSON(http.StatusOK, cached)
		return
	}
	// The snapshot carries only the symbol ID; no depth-of-book levels are
	// assembled here. The rendered value is cached for a short TTL.
	snapshot := gin.H{"symbol_id": symbolID}
	s.snapshots.Set(symbolID, snapshot, cache.DefaultExpiration)
	c.JSON(http.StatusOK, snapshot)
}

type addSymbolRequest struct {
	ID   uint32 `json:"id" binding:"required"`
	Name string `json:"name" binding:"required"`
}

func (s *Server) handleAddSymbol(c *gin.Context) {
	var req addSymbolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Wrap(apierr.CodeInvalidInput, "invalid symbol payload", err))
		return
	}
	if code := s.manager.AddSymbol(lob.Symbol{ID: req.ID, Name: req.Name}); !code.OK() {
		s.respondError(c, code)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) handleAddOrderBook(c *gin.Context) {
	symbolID, ok := parseUint32Param(c, "symbolId")
	if !ok {
		return
	}
	if code := s.manager.AddOrderBook(symbolID); !code.OK() {
		s.respondError(c, code)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) handleEnableMatching(c *gin.Context) {
	s.manager.EnableMatching()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDisableMatching(c *gin.Context) {
	s.manager.DisableMatching()
	c.Status(http.StatusNoContent)
}

func parseUint64Param(c *gin.Context, name string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierr.New(apierr.CodeInvalidInput, "invalid "+name))
		return 0, false
	}
	return v, true
}

func parseUint32Param(c *gin.Context, name string) (uint32, bool) {
	v, ok := parseUint64Param(c, name)
	return uint32(v), ok
}
