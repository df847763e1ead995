package offline

import "fmt"

// State is what the sync badge shows.
type State string

const (
	StateHidden      State = "hidden"       // online, nothing queued
	StateOffline     State = "offline"      // queued count
	StatePendingSync State = "pending_sync" // pending count and a sync control
	StateBackOnline  State = "back_online"  // transient after reconnecting
)

// Tone is the badge color family.
type Tone string

const (
	ToneNone    Tone = "none"
	ToneWarning Tone = "warning"
	ToneInfo    Tone = "info"
	ToneSuccess Tone = "success"
)

// Presentation is how a state is rendered.
type Presentation struct {
	Visible     bool
	Label       string // format with the count when ShowCount is set
	Tone        Tone
	ShowCount   bool
	SyncControl bool
}

// Presentations maps every state to its rendering.
var Presentations = map[State]Presentation{
	StateHidden:      {Visible: false, Tone: ToneNone},
	StateOffline:     {Visible: true, Label: "Offline · %d queued", Tone: ToneWarning, ShowCount: true},
	StatePendingSync: {Visible: true, Label: "%d pending", Tone: ToneInfo, ShowCount: true, SyncControl: true},
	StateBackOnline:  {Visible: true, Label: "Back online", Tone: ToneSuccess},
}

// deriveState picks the badge state. Offline wins over everything, and the
// back-online flash wins over a pending queue.
func deriveState(online, recovered bool, size int) State {
	switch {
	case !online:
		return StateOffline
	case recovered:
		return StateBackOnline
	case size > 0:
		return StatePendingSync
	default:
		return StateHidden
	}
}

// Badge is a snapshot of the monitor published to the UI.
type Badge struct {
	State   State  `json:"state"`
	Visible bool   `json:"visible"`
	Label   string `json:"label"`
	Tone    Tone   `json:"tone"`
	Count   int    `json:"count"`
	CanSync bool   `json:"can_sync"`
	Syncing bool   `json:"syncing"`
	Online  bool   `json:"online"`
}

func newBadge(online, recovered bool, size int, syncing bool) Badge {
	state := deriveState(online, recovered, size)
	p := Presentations[state]

	label := p.Label
	if p.ShowCount {
		label = fmt.Sprintf(p.Label, size)
	}
	return Badge{
		State:   state,
		Visible: p.Visible,
		Label:   label,
		Tone:    p.Tone,
		Count:   size,
		CanSync: p.SyncControl && !syncing,
		Syncing: syncing,
		Online:  online,
	}
}
