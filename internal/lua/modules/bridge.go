package modules

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/huebridge/internal/device"
	"github.com/dokzlo13/huebridge/internal/dispatch"
	"github.com/dokzlo13/huebridge/internal/ledger"
)

const defaultHistoryLimit = 10

// Applier applies light commands.
type Applier interface {
	Apply(id int, cmd dispatch.Command, source string) bool
}

// History reads recorded commands of one light, newest first.
type History interface {
	ForLight(lightID uint32, limit int) ([]*ledger.Entry, error)
}

// BridgeModule gives scripts access to the emulated lights:
//
//	local bridge = require("bridge")
//	bridge.on_change(function(e) ... end)  -- e is the light.changed payload
//	bridge.lights()                         -- array of light tables
//	bridge.get(id)                          -- light table or nil
//	bridge.set(id, {on=true, bri=120, xy={0.3, 0.3}, rgb={255, 0, 0}})
//	bridge.history(id, [limit])             -- recorded commands, newest first
type BridgeModule struct {
	registry *device.Registry
	applier  Applier
	lightID  func(int) uint32
	history  History

	handlers []*lua.LFunction
}

// NewBridgeModule creates the module. lightID may be nil.
func NewBridgeModule(registry *device.Registry, applier Applier, lightID func(int) uint32) *BridgeModule {
	if lightID == nil {
		lightID = func(id int) uint32 { return uint32(id) }
	}
	return &BridgeModule{registry: registry, applier: applier, lightID: lightID}
}

// SetHistory sets the ledger behind bridge.history. Without one the
// function returns an empty table.
func (m *BridgeModule) SetHistory(h History) {
	m.history = h
}

// Loader is the module loader for Lua
func (m *BridgeModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "on_change", L.NewFunction(m.onChange))
	L.SetField(mod, "lights", L.NewFunction(m.lights))
	L.SetField(mod, "get", L.NewFunction(m.get))
	L.SetField(mod, "set", L.NewFunction(m.set))
	L.SetField(mod, "history", L.NewFunction(m.historyFor))

	L.Push(mod)
	return 1
}

// HandlerCount returns the number of registered change handlers.
func (m *BridgeModule) HandlerCount() int { return len(m.handlers) }

// Notify calls every change handler with data. Must run on the Lua worker.
func (m *BridgeModule) Notify(L *lua.LState, data map[string]any) {
	for _, fn := range m.handlers {
		err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, MapToLuaTable(L, data))
		if err != nil {
			log.Error().Err(err).Msg("Lua change handler failed")
		}
	}
}

// on_change(fn)
func (m *BridgeModule) onChange(L *lua.LState) int {
	m.handlers = append(m.handlers, L.CheckFunction(1))
	return 0
}

// lights() -> {light, ...}
func (m *BridgeModule) lights(L *lua.LState) int {
	tbl := L.NewTable()
	for _, s := range m.registry.Snapshots() {
		tbl.Append(m.lightTable(L, s))
	}
	L.Push(tbl)
	return 1
}

// get(id) -> light | nil
func (m *BridgeModule) get(L *lua.LState) int {
	s, ok := m.registry.Snapshot(L.CheckInt(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(m.lightTable(L, s))
	return 1
}

// set(id, state) -> bool
func (m *BridgeModule) set(L *lua.LState) int {
	id := L.CheckInt(1)
	state := L.CheckTable(2)

	// The state table goes through the same parser as API bodies so that
	// clamping and type checks are identical.
	body, err := json.Marshal(LuaTableToMap(state))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}

	L.Push(lua.LBool(m.applier.Apply(id, dispatch.ParseCommand(body), dispatch.SourceScript)))
	return 1
}

// history(id, [limit]) -> {{time=, source=, state={...}}, ...}
func (m *BridgeModule) historyFor(L *lua.LState) int {
	id := L.CheckInt(1)
	limit := L.OptInt(2, defaultHistoryLimit)

	tbl := L.NewTable()
	if m.history == nil || !m.registry.Contains(id) {
		L.Push(tbl)
		return 1
	}

	entries, err := m.history.ForLight(m.lightID(id), limit)
	if err != nil {
		L.RaiseError("history: %v", err)
		return 0
	}
	for _, e := range entries {
		row := L.NewTable()
		L.SetField(row, "event_id", lua.LString(e.EventID))
		L.SetField(row, "time", lua.LNumber(e.Timestamp.Unix()))
		L.SetField(row, "source", lua.LString(e.Source))
		L.SetField(row, "state", MapToLuaTable(L, e.Payload))
		tbl.Append(row)
	}
	L.Push(tbl)
	return 1
}

func (m *BridgeModule) lightTable(L *lua.LState, s device.Snapshot) *lua.LTable {
	tbl := L.NewTable()
	L.SetField(tbl, "id", lua.LNumber(s.ID))
	L.SetField(tbl, "light_id", lua.LNumber(m.lightID(s.ID)))
	L.SetField(tbl, "name", lua.LString(s.Name))
	L.SetField(tbl, "type", lua.LString(s.Capability.String()))
	L.SetField(tbl, "on", lua.LBool(s.On()))
	L.SetField(tbl, "value", lua.LNumber(s.Value))
	L.SetField(tbl, "bri", lua.LNumber(s.Bri))
	L.SetField(tbl, "percent", lua.LNumber(s.Percent()))
	L.SetField(tbl, "color_mode", lua.LString(s.ColorMode.String()))
	L.SetField(tbl, "hue", lua.LNumber(s.Hue))
	L.SetField(tbl, "sat", lua.LNumber(s.Sat))
	L.SetField(tbl, "ct", lua.LNumber(s.CT))

	xy := L.NewTable()
	xy.Append(lua.LNumber(s.X))
	xy.Append(lua.LNumber(s.Y))
	L.SetField(tbl, "xy", xy)

	rgb := L.NewTable()
	rgb.Append(lua.LNumber(s.RGB.R))
	rgb.Append(lua.LNumber(s.RGB.G))
	rgb.Append(lua.LNumber(s.RGB.B))
	L.SetField(tbl, "rgb", rgb)
	L.SetField(tbl, "rgb_hex", lua.LString(s.RGB.Hex()))
	return tbl
}
