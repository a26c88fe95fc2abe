package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/blockbase/internal/auth"
	"github.com/annel0/blockbase/internal/cache"
	"github.com/annel0/blockbase/internal/item"
	"github.com/annel0/blockbase/internal/logging"
	"github.com/annel0/blockbase/internal/middleware"
	"github.com/annel0/blockbase/internal/world/block"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// WorldService - операции мира, нужные admin API
type WorldService interface {
	block.WorldState
	SetVariant(ctx context.Context, pos cube.Pos, id block.VariantID) error
	Remove(ctx context.Context, pos cube.Pos) (bool, error)
	Len() int
}

// Config содержит зависимости admin API
type Config struct {
	Port       int
	Dispatcher *block.Dispatcher
	World      WorldService
	Names      *item.NameTable
	// Instances - кеш экземпляров для /api/stats (может быть nil)
	Instances *cache.InstanceCache
	Tokens    *auth.TokenManager
	Logger    *logging.Logger
	// Metrics - регистр prometheus; nil - дефолтный
	Metrics *prometheus.Registry
	// Tracing включает otelgin
	Tracing bool
	// IOTimeout ограничивает запись в мир из обработчиков
	IOTimeout time.Duration
}

// Server - admin REST API над диспетчером и миром
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	dispatcher *block.Dispatcher
	world      WorldService
	names      *item.NameTable
	instances  *cache.InstanceCache
	tokens     *auth.TokenManager
	logger     *logging.Logger
	metrics    *ServerMetrics
	ioTimeout  time.Duration
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// VariantInfo - запись реестра в ответе /api/variants
type VariantInfo struct {
	ID       block.VariantID `json:"id"`
	Type     string          `json:"type"`
	Label    string          `json:"label"`
	ItemName string          `json:"item_name,omitempty"`
}

// BlockInfo - состояние блока в позиции, посчитанное через диспетчер
type BlockInfo struct {
	X          int             `json:"x"`
	Y          int             `json:"y"`
	Z          int             `json:"z"`
	Variant    block.VariantID `json:"variant"`
	Registered bool            `json:"registered"`
	Type       string          `json:"type,omitempty"`
	ItemName   string          `json:"item_name,omitempty"`
	Hardness   float32         `json:"hardness"`
	Light      int             `json:"light"`
	Color      int             `json:"color"`
	Bounds     [6]float32      `json:"bounds"`
}

// SetBlockRequest - тело PUT /api/blocks/:x/:y/:z
type SetBlockRequest struct {
	Variant *block.VariantID `json:"variant" binding:"required"`
}

// NewServer создает admin API сервер
func NewServer(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil || cfg.World == nil {
		return nil, errors.New("api: Dispatcher и World обязательны")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("api: Tokens обязателен")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Port <= 0 {
		cfg.Port = 8088
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = 5 * time.Second
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	if cfg.Tracing {
		router.Use(otelgin.Middleware("blockbase_admin"))
	}
	router.Use(middleware.NewRequestLogger(cfg.Logger).Handler())

	promMw := middleware.NewPrometheusMiddleware("blockbase_admin", cfg.Metrics)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	s := &Server{
		router:     router,
		dispatcher: cfg.Dispatcher,
		world:      cfg.World,
		names:      cfg.Names,
		instances:  cfg.Instances,
		tokens:     cfg.Tokens,
		logger:     cfg.Logger,
		metrics:    NewServerMetrics(),
		ioTimeout:  cfg.IOTimeout,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.setupRoutes()
	return s, nil
}

// Handler возвращает http.Handler (для тестов и встраивания)
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes настраивает маршруты REST API
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	api.GET("/variants", s.handleVariants)
	api.GET("/blocks/:x/:y/:z", s.handleGetBlock)

	// Защищенные эндпоинты (требуют JWT)
	protected := api.Group("/")
	protected.Use(s.jwtMiddleware())
	{
		protected.GET("/stats", s.handleStats)

		write := protected.Group("/")
		write.Use(s.writeMiddleware())
		write.PUT("/blocks/:x/:y/:z", s.handleSetBlock)
		write.DELETE("/blocks/:x/:y/:z", s.handleDeleteBlock)
		write.POST("/cache/purge", s.handlePurgeCache)
	}
}

// handleHealth проверка состояния сервера
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
		"sealed": s.dispatcher.Registry().Sealed(),
	})
}

// handleVariants отдаёт зарегистрированные варианты по возрастанию номера
func (s *Server) handleVariants(c *gin.Context) {
	descs := s.dispatcher.Registry().Descriptors()
	out := make([]VariantInfo, 0, len(descs))
	for _, d := range descs {
		info := VariantInfo{ID: d.ID, Type: d.Type.Name, Label: d.Label}
		if s.names != nil {
			info.ItemName, _ = s.names.Name(d.ID)
		}
		out = append(out, info)
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список вариантов получен",
		Data: gin.H{
			"variants": out,
			"capacity": s.dispatcher.Registry().Capacity(),
		},
	})
}

func (s *Server) handleGetBlock(c *gin.Context) {
	pos, ok := parsePos(c)
	if !ok {
		return
	}

	id, exists := s.world.Variant(pos)
	if !exists {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: fmt.Sprintf("В позиции %v нет блока", pos),
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Блок найден",
		Data:    s.describe(pos, id),
	})
}

// describe считает свойства блока так же, как их увидит движок
func (s *Server) describe(pos cube.Pos, id block.VariantID) BlockInfo {
	bounds := s.dispatcher.BlockBounds(s.world, pos)
	lo, hi := bounds.Min(), bounds.Max()
	info := BlockInfo{
		X:        pos.X(),
		Y:        pos.Y(),
		Z:        pos.Z(),
		Variant:  id,
		Hardness: s.dispatcher.Hardness(s.world, pos),
		Light:    s.dispatcher.LightValue(s.world, pos),
		Color:    s.dispatcher.ColorMultiplier(s.world, pos, 0),
		Bounds:   [6]float32{lo.X(), lo.Y(), lo.Z(), hi.X(), hi.Y(), hi.Z()},
	}
	if desc, ok := s.dispatcher.Registry().Lookup(id); ok {
		info.Registered = true
		info.Type = desc.Type.Name
	}
	if s.names != nil {
		info.ItemName = s.names.DisplayName(block.ItemStack{Variant: id, Count: 1})
	}
	return info
}

func (s *Server) handleSetBlock(c *gin.Context) {
	pos, ok := parsePos(c)
	if !ok {
		return
	}

	var req SetBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}
	id := *req.Variant
	if id < 0 || id > block.MaxVariantID {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: fmt.Sprintf("Вариант %d вне диапазона 0..%d", id, block.MaxVariantID),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.ioTimeout)
	defer cancel()
	if err := s.world.SetVariant(ctx, pos, id); err != nil {
		s.logger.Error("Ошибка записи блока %v: %v", pos, err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка записи в хранилище",
		})
		return
	}

	s.logger.Info("Оператор %s поставил вариант %d в %v", c.GetString(ctxOperator), id, pos)
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Блок обновлён",
		Data:    s.describe(pos, id),
	})
}

func (s *Server) handleDeleteBlock(c *gin.Context) {
	pos, ok := parsePos(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.ioTimeout)
	defer cancel()
	removed, err := s.world.Remove(ctx, pos)
	if err != nil {
		s.logger.Error("Ошибка удаления блока %v: %v", pos, err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка удаления из хранилища",
		})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: fmt.Sprintf("В позиции %v нет блока", pos),
		})
		return
	}

	s.logger.Info("Оператор %s удалил блок в %v", c.GetString(ctxOperator), pos)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Блок удалён"})
}

// handleStats возвращает статистику сервера
func (s *Server) handleStats(c *gin.Context) {
	data := gin.H{
		"uptime":   s.metrics.GetUptime(),
		"memory":   s.metrics.GetMemoryStats(),
		"blocks":   s.world.Len(),
		"variants": s.dispatcher.Registry().Len(),
	}
	if s.instances != nil {
		data["instances"] = s.instances.Stats()
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    data,
	})
}

func (s *Server) handlePurgeCache(c *gin.Context) {
	if s.instances == nil {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Кеш экземпляров отключён",
		})
		return
	}
	n := s.instances.Len()
	s.instances.Purge()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Кеш очищен",
		Data:    gin.H{"purged": n},
	})
}

// parsePos читает :x/:y/:z; при ошибке сам отвечает 400
func parsePos(c *gin.Context) (cube.Pos, bool) {
	var pos cube.Pos
	for i, name := range []string{"x", "y", "z"} {
		v, err := strconv.Atoi(c.Param(name))
		if err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{
				Success: false,
				Message: fmt.Sprintf("Неверная координата %s: %q", name, c.Param(name)),
			})
			return cube.Pos{}, false
		}
		pos[i] = v
	}
	return pos, true
}

// Start запускает REST сервер; блокируется до Shutdown
func (s *Server) Start() error {
	s.logger.Info("🌐 Admin API слушает %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает сервер, дожидаясь активных запросов
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
