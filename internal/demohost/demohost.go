// Package demohost is a toy tower-defense world used by cmd/unitscript to
// exercise the host-value protocol end to end: one Bot, one Core, and a
// handful of Enemy units a compiled unit script can scan, fire on, and
// maneuver around. It is demo scaffolding, not the real game referenced by
// the engine's design — that is why it lives under internal/.
package demohost

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/unitscript/unitscript/pkg/host"
)

type botState struct {
	Health  float64
	X, Y    float64
	Heading float64
}

type enemyState struct {
	Health float64
	X, Y   float64
}

type coreState struct {
	Health float64
}

type playerState struct {
	Name  string
	Score float64
}

// fireCooldownTicks is how many CALLs to fire() yield before the shot
// resolves, demonstrating the resumable-CALL protocol for a blocking host
// action (a weapon on cooldown).
const fireCooldownTicks = 2

const fireDamage = 10

// World is a single-Bot, single-Core toy battlefield.
type World struct {
	mu  sync.Mutex
	log *slog.Logger

	bot       *botState
	core      *coreState
	commander *playerState
	enemies   []*enemyState
	cooldown  int

	Bot  *host.HostObject
	Core *host.HostObject
}

// NewWorld builds a toy world with one Bot, one Core, and three Enemy units.
func NewWorld(log *slog.Logger) *World {
	if log == nil {
		log = slog.Default()
	}
	w := &World{
		log:       log,
		bot:       &botState{Health: 100},
		core:      &coreState{Health: 500},
		commander: &playerState{Name: "commander", Score: 0},
		cooldown:  fireCooldownTicks,
		enemies: []*enemyState{
			{Health: 30, X: 4, Y: 0},
			{Health: 30, X: 10, Y: 0},
			{Health: 30, X: 20, Y: 0},
		},
	}
	w.Bot = &host.HostObject{TypeTag: host.BotTag, Handle: w.bot}
	w.Core = &host.HostObject{TypeTag: host.CoreTag, Handle: w.core}
	return w
}

// Describe renders a one-line snapshot of the world for the demo CLI to
// print after a run.
func (w *World) Describe() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	alive := 0
	for _, e := range w.enemies {
		if e.Health > 0 {
			alive++
		}
	}
	return fmt.Sprintf("bot health=%.0f pos=(%.1f,%.1f) core health=%.0f enemies alive=%d/%d",
		w.bot.Health, w.bot.X, w.bot.Y, w.core.Health, alive, len(w.enemies))
}

// GetAttr implements host.Environment.
func (w *World) GetAttr(obj *host.HostObject, name string) (host.Value, error) {
	switch obj.TypeTag {
	case host.BotTag:
		return w.botAttr(name)
	case host.CoreTag:
		return w.coreAttr(name)
	case host.EnemyTag:
		return w.enemyAttr(obj.Handle.(*enemyState), name)
	case host.PlayerTag:
		return w.playerAttr(obj.Handle.(*playerState), name)
	default:
		return nil, &host.AttributeError{TypeTag: obj.TypeTag, Name: name}
	}
}

// Call implements host.Environment. Every callable this world hands out is
// a *host.BuiltinValue returned from GetAttr, so the VM invokes those
// directly and Call is only reached if a script tries to call a bare
// HostObject, which this world never makes callable.
func (w *World) Call(callee host.Value, args []host.Value) (host.Value, error) {
	return nil, &host.TypeError{Message: fmt.Sprintf("%s is not callable", callee.Type())}
}

func (w *World) botAttr(name string) (host.Value, error) {
	switch name {
	case "health":
		w.mu.Lock()
		defer w.mu.Unlock()
		return host.Number(w.bot.Health), nil
	case "hacker":
		return &host.HostObject{TypeTag: host.PlayerTag, Handle: w.commander}, nil
	case "forward":
		return w.action(name, w.moveForward), nil
	case "backward":
		return w.action(name, w.moveBackward), nil
	case "turnLeft":
		return w.action(name, w.turnLeft), nil
	case "turnRight":
		return w.action(name, w.turnRight), nil
	case "fire":
		return w.action(name, w.fire), nil
	case "scan":
		return w.action(name, w.scan), nil
	default:
		return nil, &host.AttributeError{TypeTag: host.BotTag, Name: name}
	}
}

func (w *World) coreAttr(name string) (host.Value, error) {
	switch name {
	case "health":
		w.mu.Lock()
		defer w.mu.Unlock()
		return host.Number(w.core.Health), nil
	default:
		return nil, &host.AttributeError{TypeTag: host.CoreTag, Name: name}
	}
}

func (w *World) enemyAttr(e *enemyState, name string) (host.Value, error) {
	switch name {
	case "health":
		w.mu.Lock()
		defer w.mu.Unlock()
		return host.Number(e.Health), nil
	case "position":
		w.mu.Lock()
		defer w.mu.Unlock()
		return &host.List{Elements: []host.Value{host.Number(e.X), host.Number(e.Y)}}, nil
	default:
		return nil, &host.AttributeError{TypeTag: host.EnemyTag, Name: name}
	}
}

func (w *World) playerAttr(p *playerState, name string) (host.Value, error) {
	switch name {
	case "name":
		return host.String(p.Name), nil
	case "score":
		return host.Number(p.Score), nil
	default:
		return nil, &host.AttributeError{TypeTag: host.PlayerTag, Name: name}
	}
}

// action wraps a zero-argument world action as a callable Value, so
// GetAttr("forward") etc. produces something the VM's CALL instruction can
// invoke directly without going through Environment.Call.
func (w *World) action(name string, fn func() (host.Value, error)) *host.BuiltinValue {
	return &host.BuiltinValue{
		Name: name,
		Fn: func(args []host.Value) (host.Value, error) {
			w.log.Debug("bot action", "name", name)
			return fn()
		},
	}
}

func (w *World) moveForward() (host.Value, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bot.X += math.Cos(w.bot.Heading)
	w.bot.Y += math.Sin(w.bot.Heading)
	return host.NoneValue, nil
}

func (w *World) moveBackward() (host.Value, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bot.X -= math.Cos(w.bot.Heading)
	w.bot.Y -= math.Sin(w.bot.Heading)
	return host.NoneValue, nil
}

func (w *World) turnLeft() (host.Value, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bot.Heading -= math.Pi / 8
	return host.NoneValue, nil
}

func (w *World) turnRight() (host.Value, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bot.Heading += math.Pi / 8
	return host.NoneValue, nil
}

// fire yields fireCooldownTicks times before resolving, modeling a weapon on
// cooldown per the resumable-CALL protocol: the VM retries the same CALL
// instruction on each subsequent Step until this stops returning Yielded.
func (w *World) fire() (host.Value, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cooldown > 0 {
		w.cooldown--
		w.log.Debug("fire yielded, still on cooldown", "remaining", w.cooldown)
		return host.Yielded, nil
	}

	target := w.nearestAliveEnemyLocked()
	if target == nil {
		return host.NoneValue, nil
	}
	target.Health -= fireDamage
	w.cooldown = fireCooldownTicks
	w.log.Info("bot fired", "damage", fireDamage, "enemyHealthRemaining", target.Health)
	return host.NoneValue, nil
}

func (w *World) scan() (host.Value, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	vals := make([]host.Value, 0, len(w.enemies))
	for _, e := range w.enemies {
		if e.Health > 0 {
			vals = append(vals, &host.HostObject{TypeTag: host.EnemyTag, Handle: e})
		}
	}
	return &host.List{Elements: vals}, nil
}

// Builtins returns the selector functions (nearest, furthest, weakest,
// strongest) and ammo constants a unit script resolves as reserved
// globals, for installing into a VM via vm.WithBuiltins. The engine's
// default builtins (len, range, abs) cover names that need no host
// access; these do, so they live with the world that can answer them.
func (w *World) Builtins() map[string]host.Value {
	builtins := map[string]host.Value{
		host.NameNearest:   &host.BuiltinValue{Name: host.NameNearest, Fn: w.selectByDistance(true)},
		host.NameFurthest:  &host.BuiltinValue{Name: host.NameFurthest, Fn: w.selectByDistance(false)},
		host.NameWeakest:   &host.BuiltinValue{Name: host.NameWeakest, Fn: selectByHealth(true)},
		host.NameStrongest: &host.BuiltinValue{Name: host.NameStrongest, Fn: selectByHealth(false)},
	}
	for _, name := range host.AmmoConstants {
		builtins[name] = host.String(name)
	}
	return builtins
}

// enemiesFromArg unpacks the single List-of-Enemy argument a selector
// expects, the shape self.scan() produces.
func enemiesFromArg(args []host.Value) ([]*enemyState, error) {
	if len(args) != 1 {
		return nil, &host.TypeError{Message: fmt.Sprintf("selector takes exactly 1 argument (%d given)", len(args))}
	}
	list, ok := args[0].(*host.List)
	if !ok {
		return nil, &host.TypeError{Message: "selector argument must be a List of Enemy"}
	}
	enemies := make([]*enemyState, 0, len(list.Elements))
	for _, v := range list.Elements {
		obj, ok := v.(*host.HostObject)
		if !ok || obj.TypeTag != host.EnemyTag {
			return nil, &host.TypeError{Message: "selector argument must be a List of Enemy"}
		}
		enemies = append(enemies, obj.Handle.(*enemyState))
	}
	return enemies, nil
}

// selectByDistance returns a selector builtin picking the nearest (or,
// with nearest=false, furthest) enemy in the list from the bot's current
// position.
func (w *World) selectByDistance(nearest bool) host.Builtin {
	return func(args []host.Value) (host.Value, error) {
		enemies, err := enemiesFromArg(args)
		if err != nil {
			return nil, err
		}
		w.mu.Lock()
		botX, botY := w.bot.X, w.bot.Y
		w.mu.Unlock()

		var best *enemyState
		bestDist := math.Inf(1)
		if !nearest {
			bestDist = math.Inf(-1)
		}
		for _, e := range enemies {
			d := math.Hypot(e.X-botX, e.Y-botY)
			if (nearest && d < bestDist) || (!nearest && d > bestDist) {
				bestDist = d
				best = e
			}
		}
		if best == nil {
			return host.NoneValue, nil
		}
		return &host.HostObject{TypeTag: host.EnemyTag, Handle: best}, nil
	}
}

// selectByHealth returns a selector builtin picking the lowest-health (or,
// with weakest=false, highest-health) enemy in the list.
func selectByHealth(weakest bool) host.Builtin {
	return func(args []host.Value) (host.Value, error) {
		enemies, err := enemiesFromArg(args)
		if err != nil {
			return nil, err
		}
		var best *enemyState
		for _, e := range enemies {
			if best == nil || (weakest && e.Health < best.Health) || (!weakest && e.Health > best.Health) {
				best = e
			}
		}
		if best == nil {
			return host.NoneValue, nil
		}
		return &host.HostObject{TypeTag: host.EnemyTag, Handle: best}, nil
	}
}

// nearestAliveEnemyLocked requires w.mu to already be held.
func (w *World) nearestAliveEnemyLocked() *enemyState {
	var nearest *enemyState
	best := math.Inf(1)
	for _, e := range w.enemies {
		if e.Health <= 0 {
			continue
		}
		d := math.Hypot(e.X-w.bot.X, e.Y-w.bot.Y)
		if d < best {
			best = d
			nearest = e
		}
	}
	return nearest
}
