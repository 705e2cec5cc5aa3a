package tools

import (
	"context"
	"fmt"

	"github.com/RamXX/memory-mcp/internal/association"
	"github.com/RamXX/memory-mcp/internal/backlink"
	"github.com/RamXX/memory-mcp/internal/errs"
	"github.com/RamXX/memory-mcp/internal/graph"
	"github.com/RamXX/memory-mcp/internal/note"
	"github.com/RamXX/memory-mcp/internal/search"
)

// Dependencies wires the concrete collaborators the built-in tools call
// into; RegisterBuiltins is the sole place that knows how a tool name
// maps onto them.
type Dependencies struct {
	VaultRoot string
	Notes     *note.Repository
	Engine    *search.Engine
	Backlinks *backlink.Syncer
	Sessions  *association.Store
}

// RegisterBuiltins registers the minimum tool set the agent protocol
// advertises against r, using deps for their business logic.
func RegisterBuiltins(r *Registry, deps Dependencies) error {
	tools := []Tool{
		{
			Name:        "search_memory",
			Description: "Hybrid full-text and link-graph search over the vault.",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"query"},
				"properties": map[string]any{
					"query":    map[string]any{"type": "string"},
					"category": map[string]any{"type": "string"},
					"project":  map[string]any{"type": "string"},
					"tags":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"limit":    map[string]any{"type": "integer"},
					"offset":   map[string]any{"type": "integer"},
				},
			},
			Handler: searchMemoryHandler(deps),
		},
		{
			Name:        "create_note",
			Description: "Create a new note in the vault.",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"title", "content"},
				"properties": map[string]any{
					"title":    map[string]any{"type": "string"},
					"content":  map[string]any{"type": "string"},
					"category": map[string]any{"type": "string"},
					"project":  map[string]any{"type": "string"},
					"tags":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
			Handler: createNoteHandler(deps),
		},
		{
			Name:        "update_note",
			Description: "Update an existing note's content or metadata by UID.",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"uid"},
				"properties": map[string]any{
					"uid":     map[string]any{"type": "string"},
					"title":   map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
					"tags":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
			Handler: updateNoteHandler(deps),
		},
		{
			Name:        "delete_note",
			Description: "Delete a note by UID, removing its index, graph, and backlink state.",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"uid"},
				"properties": map[string]any{
					"uid": map[string]any{"type": "string"},
				},
			},
			Handler: deleteNoteHandler(deps),
		},
		{
			Name:        "explore_links",
			Description: "Explore a note's link neighborhood: backlinks, outbound links, bounded traversal, or orphan discovery.",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"mode"},
				"properties": map[string]any{
					"mode":      map[string]any{"type": "string", "enum": []any{"backlinks", "outbound", "connected", "orphans"}},
					"uid":       map[string]any{"type": "string"},
					"depth":     map[string]any{"type": "integer"},
					"limit":     map[string]any{"type": "integer"},
					"direction": map[string]any{"type": "string", "enum": []any{"outgoing", "incoming", "both"}},
				},
			},
			Handler: exploreLinksHandler(deps),
		},
		{
			Name:        "associative_search",
			Description: "Search reranked by affinity with a session's recently referenced notes.",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"session_id", "query"},
				"properties": map[string]any{
					"session_id": map[string]any{"type": "string"},
					"query":      map[string]any{"type": "string"},
					"limit":      map[string]any{"type": "integer"},
					"strength":   map[string]any{"type": "number"},
				},
			},
			Handler: associativeSearchHandler(deps),
		},
		{
			Name:        "session_context",
			Description: "Return (and optionally extend) a session's recently referenced note UIDs, creating the session if needed.",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"session_id"},
				"properties": map[string]any{
					"session_id": map[string]any{"type": "string"},
					"uid":        map[string]any{"type": "string"},
				},
			},
			Handler: sessionContextHandler(deps),
		},
		{
			Name:        "reflect_session",
			Description: "Return a session's recently referenced note UIDs; fails if the session does not exist.",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []any{"session_id"},
				"properties": map[string]any{
					"session_id": map[string]any{"type": "string"},
				},
			},
			Handler: reflectSessionHandler(deps),
		},
	}

	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func searchMemoryHandler(deps Dependencies) Handler {
	return func(ctx context.Context, input map[string]any) (any, error) {
		query, _ := input["query"].(string)
		opts := search.SearchOptions{
			Category: stringField(input, "category"),
			Project:  stringField(input, "project"),
			Tags:     stringSliceField(input, "tags"),
			Limit:    intField(input, "limit"),
			Offset:   intField(input, "offset"),
		}
		results, metrics, err := deps.Engine.Search(ctx, query, opts)
		if err != nil {
			return nil, err
		}
		return map[string]any{"results": results, "metrics": metrics}, nil
	}
}

func createNoteHandler(deps Dependencies) Handler {
	return func(ctx context.Context, input map[string]any) (any, error) {
		const op = "tools.createNote"

		title, _ := input["title"].(string)
		content, _ := input["content"].(string)
		if title == "" || content == "" {
			return nil, errs.New(errs.InvalidRequest, op, "title and content are required")
		}
		category := note.Category(stringField(input, "category"))
		if category == "" {
			category = note.CategoryResources
		}
		if !note.ValidCategory(category) {
			return nil, errs.New(errs.InvalidRequest, op, fmt.Sprintf("unknown category: %s", category))
		}

		project := stringField(input, "project")
		tags := stringSliceField(input, "tags")
		path := note.PathFor(deps.VaultRoot, category, project, title)

		n, err := deps.Notes.Create(path, title, content, note.CreateOptions{Category: category, Tags: tags, Project: project})
		if err != nil {
			return nil, err
		}

		if err := deps.Engine.IndexNote(ctx, search.NoteInputFromHeader(n)); err != nil {
			return nil, err
		}
		if err := deps.Backlinks.Sync(n.Header.ID); err != nil {
			return nil, err
		}
		return map[string]any{"uid": n.Header.ID, "path": n.Path}, nil
	}
}

func updateNoteHandler(deps Dependencies) Handler {
	return func(ctx context.Context, input map[string]any) (any, error) {
		const op = "tools.updateNote"

		uid, _ := input["uid"].(string)
		if uid == "" {
			return nil, errs.New(errs.InvalidRequest, op, "uid is required")
		}
		n, found, err := deps.Notes.FindByUID(uid)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errs.New(errs.NotFound, op, "no such note: "+uid)
		}

		if title := stringField(input, "title"); title != "" {
			n.Header.Title = title
		}
		if content, ok := input["content"].(string); ok {
			n.Body = content
		}
		if tags := stringSliceField(input, "tags"); tags != nil {
			n.Header.Tags = tags
		}

		n, err = deps.Notes.Save(n, note.SaveOptions{Atomic: true})
		if err != nil {
			return nil, err
		}
		if err := deps.Engine.IndexNote(ctx, search.NoteInputFromHeader(n)); err != nil {
			return nil, err
		}
		if err := deps.Backlinks.Sync(n.Header.ID); err != nil {
			return nil, err
		}
		return map[string]any{"uid": n.Header.ID, "path": n.Path}, nil
	}
}

func deleteNoteHandler(deps Dependencies) Handler {
	return func(ctx context.Context, input map[string]any) (any, error) {
		const op = "tools.deleteNote"

		uid, _ := input["uid"].(string)
		if uid == "" {
			return nil, errs.New(errs.InvalidRequest, op, "uid is required")
		}
		n, found, err := deps.Notes.FindByUID(uid)
		if err != nil {
			return nil, err
		}
		if !found {
			// deletes are tolerant: a missing uid is a no-op success.
			return map[string]any{"uid": uid, "deleted": false}, nil
		}

		if err := deps.Notes.Delete(n.Path, note.DeleteOptions{}); err != nil {
			return nil, err
		}
		if err := deps.Engine.RemoveNote(ctx, uid); err != nil {
			return nil, err
		}
		if err := deps.Backlinks.Cleanup(uid); err != nil {
			return nil, err
		}
		return map[string]any{"uid": uid, "deleted": true}, nil
	}
}

func exploreLinksHandler(deps Dependencies) Handler {
	return func(ctx context.Context, input map[string]any) (any, error) {
		const op = "tools.exploreLinks"

		mode, _ := input["mode"].(string)
		limit := intField(input, "limit")
		if limit <= 0 {
			limit = 50
		}

		switch mode {
		case "backlinks":
			uid := stringField(input, "uid")
			edges, err := deps.Engine.Backlinks(ctx, uid, limit)
			return map[string]any{"edges": edges}, err
		case "outbound":
			uid := stringField(input, "uid")
			edges, err := deps.Engine.Outbound(ctx, uid, limit)
			return map[string]any{"edges": edges}, err
		case "connected":
			uid := stringField(input, "uid")
			depth := intField(input, "depth")
			if depth <= 0 {
				depth = 2
			}
			dir := directionField(input)
			nodes, err := deps.Engine.Connected(ctx, uid, depth, limit, dir)
			return map[string]any{"nodes": nodes}, err
		case "orphans":
			uids, err := deps.Engine.Orphans(ctx, limit)
			return map[string]any{"uids": uids}, err
		default:
			return nil, errs.New(errs.InvalidRequest, op, "unknown mode: "+mode)
		}
	}
}

func associativeSearchHandler(deps Dependencies) Handler {
	return func(ctx context.Context, input map[string]any) (any, error) {
		const op = "tools.associativeSearch"

		sid, _ := input["session_id"].(string)
		query, _ := input["query"].(string)
		if sid == "" {
			return nil, errs.New(errs.InvalidRequest, op, "session_id is required")
		}
		opts := association.AssociateOptions{
			Limit:    intField(input, "limit"),
			Strength: floatField(input, "strength"),
		}
		results, err := deps.Sessions.Associate(ctx, sid, query, opts)
		if err != nil {
			return nil, err
		}
		return map[string]any{"results": results}, nil
	}
}

func sessionContextHandler(deps Dependencies) Handler {
	return func(ctx context.Context, input map[string]any) (any, error) {
		const op = "tools.sessionContext"

		sid, _ := input["session_id"].(string)
		if sid == "" {
			return nil, errs.New(errs.InvalidRequest, op, "session_id is required")
		}
		if uid := stringField(input, "uid"); uid != "" {
			deps.Sessions.Record(sid, uid)
		}
		return map[string]any{"uids": deps.Sessions.Context(sid)}, nil
	}
}

func reflectSessionHandler(deps Dependencies) Handler {
	return func(ctx context.Context, input map[string]any) (any, error) {
		const op = "tools.reflectSession"

		sid, _ := input["session_id"].(string)
		if sid == "" {
			return nil, errs.New(errs.InvalidRequest, op, "session_id is required")
		}
		uids, err := deps.Sessions.ReflectSession(sid)
		if err != nil {
			return nil, err
		}
		return map[string]any{"uids": uids}, nil
	}
}

func stringField(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}

func intField(input map[string]any, key string) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func floatField(input map[string]any, key string) float64 {
	switch v := input[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func stringSliceField(input map[string]any, key string) []string {
	raw, ok := input[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func directionField(input map[string]any) graph.Direction {
	switch stringField(input, "direction") {
	case "outgoing":
		return graph.DirOutgoing
	case "incoming":
		return graph.DirIncoming
	default:
		return graph.DirBoth
	}
}
