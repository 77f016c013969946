package debug

import (
	"looperd/internal/host"
	"looperd/internal/looper"
)

type looperView struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	State    string `json:"state"`
	NextDue  uint64 `json:"next_due"`
	Position int    `json:"position"`
}

type snapshotView struct {
	Now            uint64       `json:"now"`
	Batches        uint64       `json:"batches"`
	Executions     uint64       `json:"executions"`
	ZeroDelta      uint64       `json:"zero_delta"`
	NestedDispatch uint64       `json:"nested_dispatch"`
	Loopers        []looperView `json:"loopers"`
}

func newLooperView(l looper.TaskInfo) looperView {
	return looperView{
		ID:       l.ID,
		Name:     l.Name,
		State:    l.State.String(),
		NextDue:  uint64(l.NextDue),
		Position: l.Position,
	}
}

func newSnapshotView(snap host.Snapshot) snapshotView {
	v := snapshotView{
		Now:            uint64(snap.Now),
		Batches:        snap.Stats.Batches,
		Executions:     snap.Stats.Executions,
		ZeroDelta:      snap.Stats.ZeroDelta,
		NestedDispatch: snap.Stats.NestedDispatch,
		Loopers:        make([]looperView, 0, len(snap.Loopers)),
	}
	for _, l := range snap.Loopers {
		v.Loopers = append(v.Loopers, newLooperView(l))
	}
	return v
}
