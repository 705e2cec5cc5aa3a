// Package para implements the PARA organizer: category routing,
// target-path computation, and the archive batch operations over a vault
// repository.
package para

import (
	"os"
	"path/filepath"
	"time"

	"github.com/RamXX/memory-mcp/internal/errs"
	"github.com/RamXX/memory-mcp/internal/note"
)

// MoveReason names why a note was relocated, carried on every NoteMoved
// event.
type MoveReason string

const (
	ReasonManual         MoveReason = "manual"
	ReasonAutoArchive    MoveReason = "auto-archive"
	ReasonCategoryChange MoveReason = "category-change"
	ReasonProjectChange  MoveReason = "project-change"
)

// NoteMoved is emitted whenever the organizer relocates or recategorizes a
// note.
type NoteMoved struct {
	UID      string
	From     string
	To       string
	Reason   MoveReason
	Category note.Category
}

// Sink receives NoteMoved events; tests and the index subscribe through it.
type Sink interface {
	OnNoteMoved(NoteMoved)
}

// Config configures an Organizer.
type Config struct {
	VaultRoot         string
	Repo              *note.Repository
	ArchiveThreshold  time.Duration
	AutoMove          bool
	CategoryDirNames  map[note.Category]string
}

// Organizer routes notes between the four PARA categories and rewrites
// their on-disk location and header to match.
type Organizer struct {
	root      string
	repo      *note.Repository
	threshold time.Duration
	autoMove  bool
	dirNames  map[note.Category]string
	sinks     []Sink
}

// New builds an Organizer from cfg, filling in the default archive
// threshold (90 days) and category directory names when absent.
func New(cfg Config) *Organizer {
	threshold := cfg.ArchiveThreshold
	if threshold <= 0 {
		threshold = 90 * 24 * time.Hour
	}
	dirNames := cfg.CategoryDirNames
	if dirNames == nil {
		dirNames = map[note.Category]string{
			note.CategoryProjects:  "1-Projects",
			note.CategoryAreas:     "2-Areas",
			note.CategoryResources: "3-Resources",
			note.CategoryArchives:  "4-Archives",
		}
	}
	return &Organizer{
		root:      cfg.VaultRoot,
		repo:      cfg.Repo,
		threshold: threshold,
		autoMove:  cfg.AutoMove,
		dirNames:  dirNames,
	}
}

// Subscribe registers s to receive NoteMoved events.
func (o *Organizer) Subscribe(s Sink) { o.sinks = append(o.sinks, s) }

// TargetCategory determines the category a note's header should carry:
// a non-empty project always routes to Projects; an old, stale note
// routes to Archives; otherwise the note's existing valid category is
// preserved, defaulting to Resources.
func (o *Organizer) TargetCategory(h note.Header, now time.Time) note.Category {
	if h.Project != "" {
		return note.CategoryProjects
	}
	if now.Sub(h.Updated) > o.threshold {
		return note.CategoryArchives
	}
	if note.ValidCategory(h.Category) {
		return h.Category
	}
	return note.CategoryResources
}

// TargetPath computes root/<category_dir>/[<project>/]<sanitized_title>.md.
func (o *Organizer) TargetPath(category note.Category, project, title string) string {
	dir := filepath.Join(o.root, o.dirNames[category])
	if project != "" {
		dir = filepath.Join(dir, project)
	}
	return filepath.Join(dir, note.SanitizeTitle(title)+".md")
}

// Reconcile moves n to its computed category/path if either has drifted
// from what its header currently says, rewriting the header and, when
// autoMove is enabled, the file location too. It returns the possibly
// updated note and the NoteMoved event it emitted, or the note unchanged
// and a nil event if no move was needed.
func (o *Organizer) Reconcile(n note.Note, now time.Time) (note.Note, *NoteMoved, error) {
	target := o.TargetCategory(n.Header, now)
	targetPath := o.TargetPath(target, n.Header.Project, n.Header.Title)

	categoryChanged := target != n.Header.Category
	pathChanged := targetPath != n.Path

	if !categoryChanged && !pathChanged {
		return n, nil, nil
	}

	reason := ReasonManual
	switch {
	case target == note.CategoryArchives && categoryChanged:
		reason = ReasonAutoArchive
	case n.Header.Project != "" && categoryChanged:
		reason = ReasonProjectChange
	case categoryChanged:
		reason = ReasonCategoryChange
	}

	from := n.Path
	n.Header.Category = target

	if o.autoMove && pathChanged {
		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return n, nil, errs.Wrap(errs.WriteError, "para.Organizer.Reconcile", err)
		}
		saved, err := o.repo.Save(n, note.SaveOptions{Atomic: true})
		if err != nil {
			return n, nil, err
		}
		if err := os.Rename(from, targetPath); err != nil {
			return n, nil, errs.Wrap(errs.WriteError, "para.Organizer.Reconcile", err)
		}
		saved.Path = targetPath
		n = saved
	} else {
		saved, err := o.repo.Save(n, note.SaveOptions{Atomic: true})
		if err != nil {
			return n, nil, err
		}
		n = saved
	}

	event := NoteMoved{UID: n.Header.ID, From: from, To: n.Path, Reason: reason, Category: target}
	o.notify(event)
	return n, &event, nil
}

func (o *Organizer) notify(ev NoteMoved) {
	for _, s := range o.sinks {
		s.OnNoteMoved(ev)
	}
}

// ArchiveOld scans Areas and Resources for notes stale past the archive
// threshold and reconciles each into Archives.
func (o *Organizer) ArchiveOld() ([]NoteMoved, error) {
	const op = "para.Organizer.ArchiveOld"
	now := time.Now()

	var moved []NoteMoved
	for _, cat := range []note.Category{note.CategoryAreas, note.CategoryResources} {
		dir := filepath.Join(o.root, o.dirNames[cat])
		paths, err := listNotePaths(dir)
		if err != nil {
			continue
		}
		for _, p := range paths {
			n, err := o.repo.LoadLenient(p)
			if err != nil {
				continue
			}
			if now.Sub(n.Header.Updated) <= o.threshold {
				continue
			}
			_, ev, err := o.Reconcile(n, now)
			if err != nil {
				return moved, errs.Wrap(errs.KindOf(err), op, err)
			}
			if ev != nil {
				moved = append(moved, *ev)
			}
		}
	}
	return moved, nil
}

// ArchiveProject archives every note belonging to the named project by
// clearing its project field and rerouting it to Archives.
func (o *Organizer) ArchiveProject(project string) ([]NoteMoved, error) {
	const op = "para.Organizer.ArchiveProject"
	now := time.Now()

	dir := filepath.Join(o.root, o.dirNames[note.CategoryProjects], project)
	paths, err := listNotePaths(dir)
	if err != nil {
		return nil, errs.Wrap(errs.WriteError, op, err)
	}

	var moved []NoteMoved
	for _, p := range paths {
		n, err := o.repo.LoadLenient(p)
		if err != nil {
			continue
		}
		n.Header.Project = ""
		n.Header.Category = note.CategoryArchives
		targetPath := o.TargetPath(note.CategoryArchives, "", n.Header.Title)

		from := n.Path
		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return moved, errs.Wrap(errs.WriteError, op, err)
		}
		saved, err := o.repo.Save(n, note.SaveOptions{Atomic: true})
		if err != nil {
			return moved, err
		}
		if err := os.Rename(from, targetPath); err != nil {
			return moved, errs.Wrap(errs.WriteError, op, err)
		}
		saved.Path = targetPath

		ev := NoteMoved{UID: saved.Header.ID, From: from, To: targetPath, Reason: ReasonAutoArchive, Category: note.CategoryArchives}
		o.notify(ev)
		moved = append(moved, ev)
	}
	return moved, nil
}

func listNotePaths(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".md" {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}
