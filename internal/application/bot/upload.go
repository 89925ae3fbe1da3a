package bot

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
	"github.com/bryanwahyu/leakwatch/internal/domain/commands"
	"github.com/bryanwahyu/leakwatch/internal/domain/uploads"
)

// Upload outcomes reported through OnUpload.
const (
	UploadAccepted  = "accepted"
	UploadRejected  = "rejected"
	UploadNoSession = "no_session"
	UploadFailed    = "failed"
)

// UploadSourcePrefix marks fingerprints created from user uploads.
const UploadSourcePrefix = "upload:"

// SubmitUpload checks a file against the caller's session and the validator.
// A rejected or failed upload leaves the session open so the user can retry.
func (r *Router) SubmitUpload(ctx context.Context, userID, fileName string, size int64, data []byte) commands.Response {
	resp, outcome := r.submitUpload(ctx, userID, fileName, size, data)
	if r.OnUpload != nil {
		r.OnUpload(outcome)
	}
	r.observe("upload_file", resp)
	return resp
}

func (r *Router) submitUpload(ctx context.Context, userID, fileName string, size int64, data []byte) (commands.Response, string) {
	session, ok := r.claim(userID)
	if !ok {
		return commands.Error{
			Reason: "no upload pending",
			Usage:  r.specs["upload"].Usage(r.parser.Prefix()),
		}, UploadNoSession
	}
	resp, outcome := r.store(ctx, session, fileName, size, data)
	if outcome != UploadAccepted {
		r.restore(session)
	}
	return resp, outcome
}

// claim removes the caller's live session so only one upload can consume it.
func (r *Router) claim(userID string) (uploads.Session, bool) {
	r.sweep()
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if ok {
		delete(r.sessions, userID)
	}
	return s, ok
}

// restore puts a claimed session back unless the user opened a new one meanwhile.
func (r *Router) restore(s uploads.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.UserID]; !ok {
		r.sessions[s.UserID] = s
	}
}

func (r *Router) store(ctx context.Context, session uploads.Session, fileName string, size int64, data []byte) (commands.Response, string) {
	userID := session.UserID

	if err := r.Validator.Validate(fileName, size); err != nil {
		var rej *uploads.Rejected
		if errors.As(err, &rej) {
			return commands.Error{Reason: rej.Reason}, UploadRejected
		}
		return commands.Error{Reason: err.Error()}, UploadRejected
	}
	if data != nil && int64(len(data)) != size {
		return commands.Error{Reason: uploads.ReasonInvalidSize}, UploadRejected
	}

	id := uuid.NewString()
	key := uploads.ObjectKey(userID, id, fileName)
	url, err := r.Sink.Put(ctx, key, "", data)
	if err != nil {
		r.Log.Error().Err(err).Str("user_id", userID).Str("key", key).Msg("upload store failed")
		return commands.Error{Reason: "upload storage is unavailable, try again"}, UploadFailed
	}

	title := strings.TrimSuffix(fileName, path.Ext(fileName))
	kind, rarity := assets.Classify(title, 0)
	if session.ExpectedKind != "" {
		kind = session.ExpectedKind
	}
	fields := map[string]any{
		"file_name":   fileName,
		"size_bytes":  size,
		"object_key":  key,
		"uploaded_by": userID,
	}
	if session.Mode != "" {
		fields["mode"] = session.Mode
	}
	meta, _ := json.Marshal(fields)
	a := assets.Asset{
		ID:             UploadSourcePrefix + id,
		SourceTargetID: UploadSourcePrefix + userID,
		Kind:           kind,
		Rarity:         rarity,
		Name:           title,
		ThumbnailURL:   url,
		Metadata:       meta,
		DiscoveredAt:   r.Clock.Now(),
	}
	if r.Store != nil {
		if err := r.Store.Record(ctx, a); err != nil {
			r.Log.Error().Err(err).Str("asset_id", a.ID).Msg("record upload failed")
			return commands.Error{Reason: "could not record the upload, try again"}, UploadFailed
		}
	}

	r.Log.Info().Str("user_id", userID).Str("asset_id", a.ID).Str("kind", string(kind)).Msg("upload accepted")
	return commands.ProcessResult{Asset: a, URL: url}, UploadAccepted
}
