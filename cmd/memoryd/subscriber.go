package main

import (
	"context"

	"github.com/RamXX/memory-mcp/internal/backlink"
	"github.com/RamXX/memory-mcp/internal/note"
	"github.com/RamXX/memory-mcp/internal/obslog"
	"github.com/RamXX/memory-mcp/internal/para"
	"github.com/RamXX/memory-mcp/internal/search"
	"github.com/RamXX/memory-mcp/internal/watcher"
)

// vaultSubscriber keeps the search index current as the vault changes:
// it observes watcher events directly and para.Organizer moves, both of
// which the backlink syncer observes too but cannot fully resolve on its
// own (an unlink event's UID is recoverable only through the index).
type vaultSubscriber struct {
	engine    *search.Engine
	repo      *note.Repository
	backlinks *backlink.Syncer
	log       obslog.Logger
}

func (v *vaultSubscriber) OnVaultEvent(ev watcher.Event) {
	ctx := context.Background()

	switch ev.Kind {
	case watcher.EventAdd, watcher.EventChange:
		if ev.Note == nil {
			return
		}
		if err := v.engine.IndexNote(ctx, search.NoteInputFromHeader(*ev.Note)); err != nil {
			v.log.Error("failed to index note", "path", ev.Path, "error", err.Error())
		}

	case watcher.EventUnlink:
		uid, found, err := v.engine.LookupUIDByPath(ctx, ev.Path)
		if err != nil {
			v.log.Error("failed to resolve deleted note's uid", "path", ev.Path, "error", err.Error())
			return
		}
		if !found {
			return
		}
		if err := v.engine.RemoveNote(ctx, uid); err != nil {
			v.log.Error("failed to remove note from index", "uid", uid, "error", err.Error())
		}
		if err := v.backlinks.Cleanup(uid); err != nil {
			v.log.Warn("failed to clean up backlinks after delete", "uid", uid, "error", err.Error())
		}
	}
}

// OnNoteMoved implements para.Sink: a category/path change leaves the old
// file_path row stale and the note unindexed under its new path until
// this reindexes it.
func (v *vaultSubscriber) OnNoteMoved(ev para.NoteMoved) {
	ctx := context.Background()

	if err := v.engine.RemoveByPath(ctx, ev.From); err != nil {
		v.log.Warn("failed to drop stale index entry after move", "path", ev.From, "error", err.Error())
	}

	n, found, err := v.repo.FindByUID(ev.UID)
	if err != nil {
		v.log.Error("failed to reload moved note", "uid", ev.UID, "error", err.Error())
		return
	}
	if !found {
		return
	}
	if err := v.engine.IndexNote(ctx, search.NoteInputFromHeader(n)); err != nil {
		v.log.Error("failed to reindex moved note", "uid", ev.UID, "error", err.Error())
	}
}
