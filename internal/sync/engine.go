package sync

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ehrlich-b/wingthing/internal/protocol"
)

// Engine applies DifSync actions parsed from a wire request and produces
// the outbound response text.
type Engine struct {
	texts   *TextRegistry
	views   *ViewRegistry
	buffers *BufferRegistry
	store   Store
	log     *slog.Logger
}

// NewEngine wires the three registries into a request processor.
func NewEngine(texts *TextRegistry, views *ViewRegistry, buffers *BufferRegistry, store Store, log *slog.Logger) *Engine {
	return &Engine{texts: texts, views: views, buffers: buffers, store: store, log: log}
}

// ReapStats reports how many entities were evicted by one Reap pass.
type ReapStats struct {
	ViewsEvicted   int
	TextsEvicted   int
	BuffersEvicted int
}

// Reap evicts views, texts, and buffers idle past their respective
// timeouts. Views are reaped first so their Destroy call can drop a Text's
// refcount to zero before the text sweep runs. ctx carries a soft
// deadline: a pass interrupted partway through leaves the remainder for
// the next tick.
func (e *Engine) Reap(ctx context.Context, now time.Time, viewTimeout, textTimeout, bufferTimeout time.Duration) ReapStats {
	var stats ReapStats
	stats.ViewsEvicted = e.views.ReapIdle(ctx, now.Add(-viewTimeout))
	stats.TextsEvicted = e.texts.ReapIdle(ctx, now.Add(-textTimeout))
	stats.BuffersEvicted = e.buffers.ReapIdle(ctx, now.Add(-bufferTimeout))
	return stats
}

// emitState tracks the (username, filename) last written to the response,
// so generateOutbound knows whether to repeat the u:/F: header lines.
type emitState struct {
	hasEmitted bool
	lastUser   string
	lastDoc    string
}

// ProcessRequest parses raw, applies every action in order, and returns the
// joined response. An unparseable request yields an empty string. Buffer
// fragments that complete a reassembly are recursively processed as an
// independent nested request; their output is appended ahead of the
// response to any ordinary actions carried alongside them.
func (e *Engine) ProcessRequest(raw string) string {
	result, ok := protocol.Parse(raw)
	if !ok {
		return ""
	}

	var out strings.Builder

	for _, frag := range result.BufferEvents {
		complete, reassembled, err := e.buffers.AcceptFragment(frag.Name, frag.Size, frag.Index, frag.Text)
		if err != nil {
			e.log.Warn("buffer fragment rejected", slog.String("name", frag.Name), slog.Any("err", err))
			continue
		}
		if !complete {
			continue
		}
		nested := reassembled
		if len(nested) > 0 {
			nested += string(nested[len(nested)-1])
		}
		out.WriteString(e.ProcessRequest(nested))
	}

	var state emitState

	for i, action := range result.Actions {
		view, err := e.views.GetOrCreate(action.Username, action.Filename)
		if err != nil {
			return ""
		}

		view.mu.Lock()

		var deltaOk bool
		switch action.Mode {
		case protocol.ModeNull:
			view.Text.SetText(nil)
			e.views.Destroy(view)
			view.mu.Unlock()
			continue

		case protocol.ModeRaw:
			view.rollbackIfLost(action.ServerVersion, e.log)
			view.pruneAcked(action.ServerVersion)

			decoded, derr := urlUnquote(action.Data)
			if derr != nil {
				e.log.Warn("raw payload decode failed", slog.String("user", action.Username), slog.String("doc", action.Filename), slog.Any("err", derr))
				decoded = action.Data
			}
			view.Shadow = decoded
			view.ShadowClientVersion = action.ClientVersion
			view.ShadowServerVersion = action.ServerVersion
			view.BackupShadow = view.Shadow
			view.BackupShadowServerVersion = view.ShadowServerVersion
			view.EditStack = nil

			if action.Force || view.Text.Snapshot() == nil {
				view.Text.SetText(&decoded)
			}
			deltaOk = true

		case protocol.ModeDelta:
			view.rollbackIfLost(action.ServerVersion, e.log)
			view.pruneAcked(action.ServerVersion)
			deltaOk = e.applyDelta(view, action)
		}

		last := i == len(result.Actions)-1
		boundary := last
		if !last {
			next := result.Actions[i+1]
			boundary = next.Username != action.Username || next.Filename != action.Filename
		}

		if boundary {
			out.WriteString(e.generateOutbound(view, result.EchoUsername, action.Force, deltaOk, &state))
			e.views.persist(view)
		}
		view.mu.Unlock()
	}

	return out.String()
}

// applyDelta runs the delta guard chain and, on success, updates the view's
// shadow and merges the change into the master text. It returns whether the
// server was able to interpret the delta (delta_ok).
func (e *Engine) applyDelta(view *View, action protocol.Action) bool {
	if action.ServerVersion != view.ShadowServerVersion {
		return false
	}
	if action.ClientVersion > view.ShadowClientVersion {
		return false
	}
	if action.ClientVersion < view.ShadowClientVersion {
		return true // duplicate: ignore silently, no apply
	}

	diffs, err := expandDelta(view.Shadow, action.Data)
	if err != nil {
		e.log.Warn("delta expansion failed", slog.String("user", view.Username), slog.String("doc", view.Filename), slog.Any("err", err))
		return false
	}

	oldShadow := view.Shadow
	view.ShadowClientVersion++
	newShadow := diffText2(diffs)
	view.Shadow = newShadow
	view.BackupShadow = newShadow
	view.BackupShadowServerVersion = view.ShadowServerVersion

	view.Text.withLock(func() {
		if view.Text.content == nil {
			view.Text.setTextLocked(&newShadow)
		}
		var master string
		if view.Text.content != nil {
			master = *view.Text.content
		}
		if action.Force && hasRealChange(diffs) {
			view.Text.setTextLocked(&newShadow)
			return
		}
		merged, _ := applyPatches(oldShadow, diffs, master)
		view.Text.setTextLocked(&merged)
	})

	return true
}

// generateOutbound builds the response block for view after its state has
// just been updated, pushing a new entry onto the edit stack and appending
// every entry still pending acknowledgement.
func (e *Engine) generateOutbound(view *View, echoUsername, force, deltaOk bool, state *emitState) string {
	var out strings.Builder

	userChanged := !state.hasEmitted || view.Username != state.lastUser
	docChanged := !state.hasEmitted || view.Username != state.lastUser || view.Filename != state.lastDoc

	if echoUsername && userChanged {
		out.WriteString("u:" + view.Username + "\n")
	}
	if docChanged {
		out.WriteString("F:" + strconv.Itoa(view.ShadowClientVersion) + ":" + view.Filename + "\n")
	}

	if view.Text.Snapshot() == nil && deltaOk {
		shadow := view.Shadow
		view.Text.SetText(&shadow)
	}

	master := ""
	if s := view.Text.Snapshot(); s != nil {
		master = *s
	}

	if deltaOk {
		delta := outboundDelta(view.Shadow, master)
		prefix := "d:"
		if force {
			prefix = "D:"
		}
		line := prefix + strconv.Itoa(view.ShadowServerVersion) + ":" + delta + "\n"
		view.EditStack = append(view.EditStack, EditEntry{ServerVersion: view.ShadowServerVersion, Line: line})
		view.ShadowServerVersion++
	} else {
		view.ShadowClientVersion++
		var line string
		if master == "" {
			line = "r:" + strconv.Itoa(view.ShadowServerVersion) + ":\n"
		} else {
			line = "R:" + strconv.Itoa(view.ShadowServerVersion) + ":" + urlQuote(master) + "\n"
		}
		view.EditStack = append(view.EditStack, EditEntry{ServerVersion: view.ShadowServerVersion, Line: line})
	}

	view.Shadow = master

	for _, entry := range view.EditStack {
		out.WriteString(entry.Line)
	}

	state.hasEmitted = true
	state.lastUser = view.Username
	state.lastDoc = view.Filename

	return out.String()
}
