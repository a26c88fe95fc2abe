package block

import (
	"fmt"
	"time"

	"github.com/annel0/blockbase/internal/logging"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/ethaniccc/float32-cube/cube/trace"
	"github.com/go-gl/mathgl/mgl32"
)

// Имена операций для метрик и логов
const (
	OpHardness               = "hardness"
	OpPlayerRelativeHardness = "player_relative_hardness"
	OpExplosionResistance    = "explosion_resistance"
	OpLightValue             = "light_value"
	OpColorMultiplier        = "color_multiplier"
	OpBlockBounds            = "block_bounds"
	OpCollisionBoxes         = "collision_boxes"
	OpCollisionRayTrace      = "collision_ray_trace"
	OpSideSolid              = "side_solid"
	OpDrops                  = "drops"
	OpPickBlock              = "pick_block"
	OpNeighborChanged        = "neighbor_changed"
	OpPlacedBy               = "placed_by"
	OpActivated              = "activated"
	OpRemovedByPlayer        = "removed_by_player"
	OpBroken                 = "broken"
	OpDestroyEffects         = "destroy_effects"
	OpHitEffects             = "hit_effects"
)

// DispatcherConfig содержит зависимости диспетчера.
type DispatcherConfig struct {
	Registry *Registry
	// Source - источник экземпляров; nil - Resolver без кеша.
	Source InstanceSource
	// Default - поведение базового блока; nil - DefaultBehavior(DefaultProps()).
	Default Behavior
	Logger  *logging.Logger
	Metrics *Metrics
	// FailureWindow - окно дедупликации ошибок горячего пути.
	FailureWindow time.Duration
}

// Dispatcher - единая точка входа вызовов движка для блока с вариантами.
// Каждый вызов читает вариант позиции, разрешает поведение и вызывает
// ровно одно из двух: поведение варианта или поведение по умолчанию.
type Dispatcher struct {
	registry *Registry
	source   InstanceSource
	def      Behavior
	logger   *logging.Logger
	metrics  *Metrics
	failures *failureLog
}

// NewDispatcher создаёт диспетчер.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry(0)
	}
	if cfg.Source == nil {
		cfg.Source = NewResolver(cfg.Registry)
	}
	if cfg.Default == nil {
		cfg.Default = NewDefaultBehavior(DefaultProps())
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	return &Dispatcher{
		registry: cfg.Registry,
		source:   cfg.Source,
		def:      cfg.Default,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		failures: newFailureLog(cfg.Logger, cfg.FailureWindow),
	}
}

// Registry возвращает реестр вариантов.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Metrics возвращает метрики диспетчера.
func (d *Dispatcher) Metrics() *Metrics { return d.metrics }

// Default возвращает поведение по умолчанию. Через него поведения
// вариантов вызывают базовую реализацию в обход разрешения.
func (d *Dispatcher) Default() Behavior { return d.def }

// Site собирает контекст вызова для позиции без разрешения поведения.
func (d *Dispatcher) Site(w WorldState, pos cube.Pos) Site {
	s := Site{World: w, Pos: pos, Default: d.def}
	if w != nil {
		s.Variant, _ = w.Variant(pos)
	}
	return s
}

// ResetFailureLog сбрасывает дедупликацию ошибок (например, после перезагрузки мира).
func (d *Dispatcher) ResetFailureLog() {
	d.failures.reset()
}

// resolveAt разрешает поведение для варианта id. При любой неудаче
// возвращает false, ошибка при этом уже залогирована.
func (d *Dispatcher) resolveAt(s Site) (Behavior, bool) {
	b, err := d.source.Resolve(s.Pos, s.Variant)
	if err != nil {
		d.metrics.observeFailure(FailureInstantiation)
		d.failures.report(FailureInstantiation, s, err)
		return nil, false
	}
	if b == nil {
		d.metrics.observeFailure(FailureUnregistered)
		d.failures.report(FailureUnregistered, s, nil)
		return nil, false
	}
	return b, true
}

// route читает вариант позиции из мира и разрешает поведение.
func (d *Dispatcher) route(w WorldState, pos cube.Pos) (Behavior, Site, bool) {
	s := Site{World: w, Pos: pos, Default: d.def}
	if w == nil {
		return d.def, s, false
	}
	id, ok := w.Variant(pos)
	if !ok {
		return d.def, s, false
	}
	s.Variant = id
	b, ok := d.resolveAt(s)
	if !ok {
		return d.def, s, false
	}
	return b, s, true
}

// routeVariant разрешает поведение для варианта, переданного движком.
func (d *Dispatcher) routeVariant(w WorldState, pos cube.Pos, id VariantID) (Behavior, Site, bool) {
	s := Site{World: w, Pos: pos, Variant: id, Default: d.def}
	b, ok := d.resolveAt(s)
	if !ok {
		return d.def, s, false
	}
	return b, s, true
}

func dispatch[T any](d *Dispatcher, op string, w WorldState, pos cube.Pos, fn func(Behavior, Site) T) T {
	b, s, resolved := d.route(w, pos)
	return invoke(d, op, b, s, resolved, fn)
}

func dispatchVariant[T any](d *Dispatcher, op string, w WorldState, pos cube.Pos, id VariantID, fn func(Behavior, Site) T) T {
	b, s, resolved := d.routeVariant(w, pos, id)
	return invoke(d, op, b, s, resolved, fn)
}

// invoke вызывает поведение. Паника поведения варианта не уходит в движок:
// ответ даёт поведение по умолчанию.
func invoke[T any](d *Dispatcher, op string, b Behavior, s Site, resolved bool, fn func(Behavior, Site) T) (out T) {
	if !resolved {
		d.metrics.observeCall(op, RouteDefault)
		return fn(d.def, s)
	}

	d.metrics.observeCall(op, RouteBehavior)
	defer func() {
		if rec := recover(); rec != nil {
			d.metrics.observeFailure(FailurePanic)
			d.failures.report(FailurePanic, s, fmt.Errorf("%s: %v", op, rec))
			out = fn(d.def, s)
		}
	}()
	return fn(b, s)
}

// CreateInstance возвращает новый экземпляр поведения для позиции
// без отката к умолчанию. false - поведения нет или его не удалось создать.
func (d *Dispatcher) CreateInstance(w WorldState, pos cube.Pos) (Behavior, bool) {
	if w == nil {
		return nil, false
	}
	id, ok := w.Variant(pos)
	if !ok {
		return nil, false
	}
	return d.resolveAt(Site{World: w, Pos: pos, Variant: id, Default: d.def})
}

// DamageDropped - метаданные выпадающего предмета равны варианту блока.
func (d *Dispatcher) DamageDropped(id VariantID) VariantID {
	return id
}

func (d *Dispatcher) Hardness(w WorldState, pos cube.Pos) float32 {
	return dispatch(d, OpHardness, w, pos, func(b Behavior, s Site) float32 {
		return b.Hardness(s)
	})
}

func (d *Dispatcher) PlayerRelativeHardness(w WorldState, pos cube.Pos, p Player) float32 {
	return dispatch(d, OpPlayerRelativeHardness, w, pos, func(b Behavior, s Site) float32 {
		return b.PlayerRelativeHardness(s, p)
	})
}

func (d *Dispatcher) ExplosionResistance(w WorldState, pos cube.Pos, exploder Entity, ex Explosion) float32 {
	return dispatch(d, OpExplosionResistance, w, pos, func(b Behavior, s Site) float32 {
		return b.ExplosionResistance(s, exploder, ex)
	})
}

func (d *Dispatcher) LightValue(w WorldState, pos cube.Pos) int {
	return dispatch(d, OpLightValue, w, pos, func(b Behavior, s Site) int {
		return b.LightValue(s)
	})
}

func (d *Dispatcher) ColorMultiplier(w WorldState, pos cube.Pos, renderPass int) int {
	return dispatch(d, OpColorMultiplier, w, pos, func(b Behavior, s Site) int {
		return b.ColorMultiplier(s, renderPass)
	})
}

func (d *Dispatcher) BlockBounds(w WorldState, pos cube.Pos) cube.BBox {
	return dispatch(d, OpBlockBounds, w, pos, func(b Behavior, s Site) cube.BBox {
		return b.BlockBounds(s)
	})
}

// BlockBoundsForItem - границы предмета в инвентаре: всегда полный куб.
func (d *Dispatcher) BlockBoundsForItem() cube.BBox {
	return unitBox
}

// CollisionBoxes добавляет к list коробки блока, пересекающие mask.
func (d *Dispatcher) CollisionBoxes(w WorldState, pos cube.Pos, id VariantID, mask cube.BBox, e Entity, list []cube.BBox) []cube.BBox {
	boxes := dispatchVariant(d, OpCollisionBoxes, w, pos, id, func(b Behavior, s Site) []cube.BBox {
		return b.CollisionBoxes(s, mask, e)
	})
	return append(list, boxes...)
}

func (d *Dispatcher) CollisionRayTrace(w WorldState, pos cube.Pos, start, end mgl32.Vec3) (trace.BBoxResult, bool) {
	type hit struct {
		res trace.BBoxResult
		ok  bool
	}
	h := dispatch(d, OpCollisionRayTrace, w, pos, func(b Behavior, s Site) hit {
		res, ok := b.CollisionRayTrace(s, start, end)
		return hit{res: res, ok: ok}
	})
	return h.res, h.ok
}

func (d *Dispatcher) SideSolid(w WorldState, pos cube.Pos, face cube.Face) bool {
	return dispatch(d, OpSideSolid, w, pos, func(b Behavior, s Site) bool {
		return b.SideSolid(s, face)
	})
}

func (d *Dispatcher) Drops(w WorldState, pos cube.Pos, id VariantID, fortune int) []ItemStack {
	return dispatchVariant(d, OpDrops, w, pos, id, func(b Behavior, s Site) []ItemStack {
		return b.Drops(s, fortune)
	})
}

func (d *Dispatcher) PickBlock(w WorldState, pos cube.Pos, target trace.BBoxResult) ItemStack {
	return dispatch(d, OpPickBlock, w, pos, func(b Behavior, s Site) ItemStack {
		return b.PickBlock(s, target)
	})
}

func (d *Dispatcher) NeighborChanged(w WorldState, pos, neighbour cube.Pos) {
	dispatch(d, OpNeighborChanged, w, pos, func(b Behavior, s Site) struct{} {
		b.NeighborChanged(s, neighbour)
		return struct{}{}
	})
}

func (d *Dispatcher) PlacedBy(w WorldState, pos cube.Pos, id VariantID, placer Entity, item ItemStack) {
	dispatchVariant(d, OpPlacedBy, w, pos, id, func(b Behavior, s Site) struct{} {
		b.PlacedBy(s, placer, item)
		return struct{}{}
	})
}

func (d *Dispatcher) Activated(w WorldState, pos cube.Pos, id VariantID, p Player, face cube.Face, hit mgl32.Vec3) bool {
	return dispatchVariant(d, OpActivated, w, pos, id, func(b Behavior, s Site) bool {
		return b.Activated(s, p, face, hit)
	})
}

func (d *Dispatcher) RemovedByPlayer(w WorldState, pos cube.Pos, p Player, willHarvest bool) bool {
	return dispatch(d, OpRemovedByPlayer, w, pos, func(b Behavior, s Site) bool {
		return b.RemovedByPlayer(s, p, willHarvest)
	})
}

// Broken вызывается движком при разрушении блока варианта id.
func (d *Dispatcher) Broken(w WorldState, pos cube.Pos, id VariantID) {
	dispatchVariant(d, OpBroken, w, pos, id, func(b Behavior, s Site) struct{} {
		b.Broken(s)
		return struct{}{}
	})
}

func (d *Dispatcher) DestroyEffects(w WorldState, pos cube.Pos, r EffectRenderer) bool {
	return dispatch(d, OpDestroyEffects, w, pos, func(b Behavior, s Site) bool {
		return b.DestroyEffects(s, r)
	})
}

func (d *Dispatcher) HitEffects(w WorldState, pos cube.Pos, target trace.BBoxResult, r EffectRenderer) bool {
	return dispatch(d, OpHitEffects, w, pos, func(b Behavior, s Site) bool {
		return b.HitEffects(s, target, r)
	})
}
