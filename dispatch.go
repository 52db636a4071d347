package sheetsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Action selects the operation a request performs.
type Action string

const (
	ActionWrite          Action = "write"
	ActionSync           Action = "sync"
	ActionClear          Action = "clear"
	ActionGetExistingIDs Action = "get_existing_ids"
	ActionPing           Action = "ping"
)

// Request is the wire envelope for the dispatch boundary. Action decides
// which payload fields are meaningful; each action decodes its own validated
// view of the envelope before touching the store, so malformed payloads are
// rejected without mutation.
type Request struct {
	Action    string   `json:"action"`
	SecretKey string   `json:"secret_key"`
	SheetName string   `json:"sheet_name"`
	Headers   []string `json:"headers"`

	// Rows stays raw so write can distinguish an absent field from one that
	// is present but not a list of rows.
	Rows json.RawMessage `json:"rows"`

	NewRows     [][]interface{} `json:"new_rows"`
	DeleteIDs   []interface{}   `json:"delete_ids"`
	IDColumn    int             `json:"id_column"`
	ClearBefore *bool           `json:"clear_before"`
}

// Response is the single structured result every request produces. The
// transport never signals failure; callers inspect Success and Message.
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`

	// IDs is only populated for get_existing_ids; the pointer keeps the
	// field out of other responses while still rendering an empty list.
	IDs *[]interface{} `json:"ids,omitempty"`
}

// Per-action request views. Decoding one of these is the only path from an
// envelope to a store operation.
type writeRequest struct {
	Sheet       string
	Headers     []string
	Rows        [][]interface{}
	ClearBefore bool
}

type syncRequest struct {
	Sheet    string
	Headers  []string
	Diff     Diff
	IDColumn int
}

type idsRequest struct {
	Sheet    string
	IDColumn int
}

// Dispatcher routes validated requests to a Store. It holds no mutable
// state; defaults come from the Config captured at construction.
type Dispatcher struct {
	store  Store
	cfg    Config
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher over the given store. A nil logger
// falls back to slog.Default.
func NewDispatcher(store Store, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, cfg: cfg, logger: logger}
}

// Handle decodes a raw JSON envelope and dispatches it. It is the outermost
// boundary: every failure, including panics from deeper layers, is converted
// into a failure response carrying the message text.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("request panicked", "panic", r)
			resp = failure(fmt.Sprintf("%v", r))
		}
	}()

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return failure("invalid request: " + err.Error())
	}
	return d.Dispatch(ctx, req)
}

// Dispatch authorizes and routes an already-decoded request.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	if d.cfg.SecretKey != "" && req.SecretKey != d.cfg.SecretKey {
		return failure("Unauthorized")
	}

	action := Action(req.Action)
	if action == "" {
		action = ActionWrite
	}

	switch action {
	case ActionWrite:
		return d.handleWrite(ctx, req)
	case ActionSync:
		return d.handleSync(ctx, req)
	case ActionClear:
		return d.handleClear(ctx, req)
	case ActionGetExistingIDs:
		return d.handleGetExistingIDs(ctx, req)
	case ActionPing:
		return success("pong")
	default:
		return failure(fmt.Sprintf("Unknown action: %s", req.Action))
	}
}

func (d *Dispatcher) handleWrite(ctx context.Context, req Request) Response {
	w, err := d.decodeWrite(req)
	if err != nil {
		return failure(err.Error())
	}

	n, err := d.store.Replace(ctx, w.Sheet, w.Headers, w.Rows, w.ClearBefore)
	if err != nil {
		d.logger.Error("write failed", "sheet", w.Sheet, "error", err)
		return failure(err.Error())
	}

	d.logger.Info("sheet replaced", "sheet", w.Sheet, "rows", n)
	return success(fmt.Sprintf("%d rows written", n))
}

func (d *Dispatcher) handleSync(ctx context.Context, req Request) Response {
	s := syncRequest{
		Sheet:   d.cfg.sheetOr(req.SheetName),
		Headers: req.Headers,
		Diff: Diff{
			NewRows:   req.NewRows,
			DeleteIDs: req.DeleteIDs,
		},
		IDColumn: d.cfg.idColumnOr(req.IDColumn),
	}

	result, err := d.store.Apply(ctx, s.Sheet, s.Headers, s.Diff, s.IDColumn)
	if err != nil {
		d.logger.Error("sync failed", "sheet", s.Sheet, "error", err)
		return failure(err.Error())
	}

	d.logger.Info("sync applied", "sheet", s.Sheet, "added", result.Added, "removed", result.Deleted)
	return success(result.Message())
}

func (d *Dispatcher) handleClear(ctx context.Context, req Request) Response {
	sheet := d.cfg.sheetOr(req.SheetName)
	if err := d.store.Clear(ctx, sheet); err != nil {
		d.logger.Error("clear failed", "sheet", sheet, "error", err)
		return failure(err.Error())
	}
	return success(fmt.Sprintf("sheet %s cleared", sheet))
}

func (d *Dispatcher) handleGetExistingIDs(ctx context.Context, req Request) Response {
	r := idsRequest{
		Sheet:    d.cfg.sheetOr(req.SheetName),
		IDColumn: d.cfg.idColumnOr(req.IDColumn),
	}

	ids, err := d.store.ExistingIDs(ctx, r.Sheet, r.IDColumn)
	if err != nil {
		return failure(err.Error())
	}
	if ids == nil {
		ids = []interface{}{}
	}

	resp := success(fmt.Sprintf("%d ids found", len(ids)))
	resp.IDs = &ids
	return resp
}

// decodeWrite validates the write payload: rows must be present and must be
// a list of rows. Nothing is mutated when validation fails.
func (d *Dispatcher) decodeWrite(req Request) (writeRequest, error) {
	if len(req.Rows) == 0 || string(req.Rows) == "null" {
		return writeRequest{}, fmt.Errorf("%w: rows is required and must be a list of rows", ErrInvalidRequest)
	}

	var rows [][]interface{}
	if err := json.Unmarshal(req.Rows, &rows); err != nil {
		return writeRequest{}, fmt.Errorf("%w: rows is required and must be a list of rows", ErrInvalidRequest)
	}

	clearBefore := true
	if req.ClearBefore != nil {
		clearBefore = *req.ClearBefore
	}

	return writeRequest{
		Sheet:       d.cfg.sheetOr(req.SheetName),
		Headers:     req.Headers,
		Rows:        rows,
		ClearBefore: clearBefore,
	}, nil
}

func success(message string) Response {
	return Response{
		Success:   true,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func failure(message string) Response {
	return Response{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
