package note

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RamXX/memory-mcp/internal/errs"
	"github.com/RamXX/memory-mcp/internal/vaultfs"
)

// Note is a single vault document: its parsed header, its body text, and
// the absolute path it was loaded from (empty for a note not yet saved).
type Note struct {
	Header Header
	Body   string
	Path   string
}

// SaveOptions controls Repository.Save.
type SaveOptions struct {
	Atomic bool
	Backup bool
}

// CreateOptions controls Repository.Create; zero values select the spec
// defaults (category Resources, no tags, no project).
type CreateOptions struct {
	Category Category
	Tags     []string
	Project  string
}

// DeleteOptions controls Repository.Delete.
type DeleteOptions struct {
	Backup bool
}

// Repository is the note filesystem repository: the sole writer of
// note files in the vault. PARA moves, backlink rewrites, and indexing all
// observe notes through this type rather than touching files directly.
type Repository struct {
	VaultRoot string
}

// NewRepository returns a Repository rooted at vaultRoot.
func NewRepository(vaultRoot string) *Repository {
	return &Repository{VaultRoot: vaultRoot}
}

// Load reads and parses the note at path in strict mode: a missing file is
// NotFound, a missing or invalid header is ParseError.
func (r *Repository) Load(path string) (Note, error) {
	const op = "note.Repository.Load"

	data, err := vaultfs.SafeRead(path)
	if err != nil {
		return Note{}, errs.Wrap(errs.KindOf(err), op, err)
	}

	h, body, err := Parse(string(data), true)
	if err != nil {
		return Note{}, err
	}
	return Note{Header: h, Body: body, Path: path}, nil
}

// LoadLenient reads and parses the note at path in lenient mode, used by
// the watcher and bulk scans where a malformed header should not abort the
// whole operation.
func (r *Repository) LoadLenient(path string) (Note, error) {
	const op = "note.Repository.LoadLenient"

	data, err := vaultfs.SafeRead(path)
	if err != nil {
		return Note{}, errs.Wrap(errs.KindOf(err), op, err)
	}
	h, body, err := Parse(string(data), false)
	if err != nil {
		return Note{}, errs.Wrap(errs.ParseError, op, err)
	}
	return Note{Header: h, Body: body, Path: path}, nil
}

// Save writes n back to disk. When opts.Atomic is set (the default a
// caller should pass), the write goes through vaultfs.AtomicWrite. When
// opts.Backup is set, the existing file is preserved under a .bak path
// first. Updated is bumped only when the new content differs from what is
// currently on disk.
func (r *Repository) Save(n Note, opts SaveOptions) (Note, error) {
	const op = "note.Repository.Save"

	if n.Path == "" {
		return Note{}, errs.New(errs.WriteError, op, "note has no path")
	}

	if existing, err := vaultfs.SafeRead(n.Path); err == nil {
		newText := Serialize(n.Header, n.Body)
		if string(existing) != newText {
			n.Header.Updated = time.Now().UTC()
		}
	} else if !errs.Is(err, errs.NotFound) {
		return Note{}, errs.Wrap(errs.WriteError, op, err)
	} else {
		n.Header.Updated = time.Now().UTC()
	}

	if opts.Backup {
		if _, err := vaultfs.CreateBackup(n.Path); err != nil && !errs.Is(err, errs.NotFound) {
			return Note{}, errs.Wrap(errs.WriteError, op, err)
		}
	}

	text := Serialize(n.Header, n.Body)
	if opts.Atomic {
		if err := vaultfs.AtomicWrite(n.Path, []byte(text), true); err != nil {
			return Note{}, err
		}
	} else {
		if err := os.WriteFile(n.Path, []byte(text), 0o644); err != nil {
			return Note{}, errs.Wrap(errs.WriteError, op, err)
		}
	}

	return n, nil
}

// Create makes a new note at path with a freshly generated UID. It fails
// AlreadyExists if path is already occupied.
func (r *Repository) Create(path, title, body string, opts CreateOptions) (Note, error) {
	const op = "note.Repository.Create"

	if _, err := os.Stat(path); err == nil {
		return Note{}, errs.New(errs.AlreadyExists, op, fmt.Sprintf("note already exists: %s", path))
	}

	category := opts.Category
	if category == "" {
		category = CategoryResources
	}
	now := time.Now().UTC()
	h := Header{
		ID:       NewUID(),
		Title:    title,
		Category: category,
		Tags:     append([]string{}, opts.Tags...),
		Project:  opts.Project,
		Created:  now,
		Updated:  now,
		Links:    []string{},
	}
	if err := Validate(h); err != nil {
		return Note{}, err
	}

	n := Note{Header: h, Body: body, Path: path}
	text := Serialize(h, body)
	if err := vaultfs.AtomicWrite(path, []byte(text), true); err != nil {
		return Note{}, err
	}
	return n, nil
}

// Delete removes the note at path, optionally backing it up first.
func (r *Repository) Delete(path string, opts DeleteOptions) error {
	const op = "note.Repository.Delete"

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return errs.Wrap(errs.NotFound, op, err)
		}
		return errs.Wrap(errs.WriteError, op, err)
	}

	if opts.Backup {
		if _, err := vaultfs.CreateBackup(path); err != nil {
			return err
		}
		return nil
	}

	if err := os.Remove(path); err != nil {
		return errs.Wrap(errs.WriteError, op, err)
	}
	return nil
}

// FindByUID scans the vault reading only headers, returning the first note
// whose header ID matches uid, or (Note{}, false) if none does.
func (r *Repository) FindByUID(uid string) (Note, bool, error) {
	const op = "note.Repository.FindByUID"

	paths, err := vaultfs.ListMarkdown(r.VaultRoot, vaultfs.ListOptions{Recursive: true})
	if err != nil {
		return Note{}, false, errs.Wrap(errs.WriteError, op, err)
	}

	for _, p := range paths {
		data, err := vaultfs.SafeRead(p)
		if err != nil {
			continue
		}
		h, _, found := splitFrontmatter(string(data))
		if !found {
			continue
		}
		if !strings.Contains(h, uid) {
			continue
		}
		n, err := r.LoadLenient(p)
		if err != nil {
			continue
		}
		if n.Header.ID == uid {
			return n, true, nil
		}
	}
	return Note{}, false, nil
}

// vaultResolver implements Resolver by scanning every note's header once.
// Built once per analysis call; FindByUID-style per-candidate scans would
// be quadratic in vault size for notes with many links.
type vaultResolver struct {
	byUID   map[string]bool
	byTitle map[string]string
}

func newVaultResolver(repo *Repository) (*vaultResolver, error) {
	const op = "note.newVaultResolver"

	paths, err := vaultfs.ListMarkdown(repo.VaultRoot, vaultfs.ListOptions{Recursive: true})
	if err != nil {
		return nil, errs.Wrap(errs.WriteError, op, err)
	}

	vr := &vaultResolver{byUID: map[string]bool{}, byTitle: map[string]string{}}
	for _, p := range paths {
		n, err := repo.LoadLenient(p)
		if err != nil {
			continue
		}
		vr.byUID[n.Header.ID] = true
		vr.byTitle[strings.ToLower(n.Header.Title)] = n.Header.ID
	}
	return vr, nil
}

func (v *vaultResolver) HasUID(uid string) bool { return v.byUID[uid] }

func (v *vaultResolver) ResolveTitle(title string) (string, bool) {
	uid, ok := v.byTitle[strings.ToLower(title)]
	return uid, ok
}

// InboundLinks scans every note in the vault for a reference to uid or
// title, returning the UIDs of the referencing notes.
func (r *Repository) InboundLinks(uid, title string) ([]string, error) {
	const op = "note.Repository.InboundLinks"

	paths, err := vaultfs.ListMarkdown(r.VaultRoot, vaultfs.ListOptions{Recursive: true})
	if err != nil {
		return nil, errs.Wrap(errs.WriteError, op, err)
	}

	var inbound []string
	for _, p := range paths {
		n, err := r.LoadLenient(p)
		if err != nil {
			continue
		}
		if n.Header.ID == uid {
			continue
		}
		if ReferencesIdentity(n.Body, uid, title) {
			inbound = append(inbound, n.Header.ID)
		}
	}
	return inbound, nil
}

// AnalyzeLinks resolves outbound and broken links from n's body against
// the vault, plus inbound links computed by scanning the vault for
// references to n's identity.
func (r *Repository) AnalyzeLinks(n Note) (outbound []string, broken []string, inbound []string, err error) {
	resolver, err := newVaultResolver(r)
	if err != nil {
		return nil, nil, nil, err
	}
	analysis := AnalyzeLinks(n.Body, resolver)

	inbound, err = r.InboundLinks(n.Header.ID, n.Header.Title)
	if err != nil {
		return nil, nil, nil, err
	}
	return analysis.Outbound, analysis.Broken, inbound, nil
}

// PathFor computes the canonical vault path for a category, optional
// project, and title, matching the PARA organizer's layout convention.
func PathFor(vaultRoot string, category Category, project, title string) string {
	dir := filepath.Join(vaultRoot, string(category))
	if project != "" {
		dir = filepath.Join(dir, project)
	}
	return filepath.Join(dir, SanitizeTitle(title)+".md")
}

// SanitizeTitle replaces filesystem-hostile characters and whitespace runs
// with "-", trims leading/trailing "-", and truncates to 50 characters.
func SanitizeTitle(title string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range title {
		if strings.ContainsRune(`<>:"/\|?*`, r) || r == ' ' || r == '\t' || r == '\n' {
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
			continue
		}
		b.WriteRune(r)
		lastDash = false
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > 50 {
		s = strings.TrimRight(s[:50], "-")
	}
	if s == "" {
		s = "untitled"
	}
	return s
}
