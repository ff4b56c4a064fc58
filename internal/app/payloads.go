package app

import (
	"time"

	"collabhub/api/internal/history"
	"collabhub/api/internal/store"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func sessionPayload(sess Session) map[string]any {
	return map[string]any{
		"accessToken":  sess.Token,
		"refreshToken": sess.RefreshToken,
		"userId":       sess.UserID,
		"userName":     sess.UserName,
		"role":         sess.Role,
		"expiresAt":    sess.ExpiresAt.Unix(),
	}
}

// userPayload never includes the password hash.
func userPayload(u store.User) map[string]any {
	return map[string]any{
		"id":        u.ID,
		"name":      u.Name,
		"email":     u.Email,
		"role":      u.Role,
		"active":    u.Active,
		"bio":       u.Bio,
		"skills":    nonNilStrings(u.Skills),
		"createdAt": formatTime(u.CreatedAt),
		"updatedAt": formatTime(u.UpdatedAt),
	}
}

func projectPayload(p store.Project) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"ownerId":     p.OwnerID,
		"title":       p.Title,
		"description": p.Description,
		"status":      p.Status,
		"tags":        nonNilStrings(p.Tags),
		"createdAt":   formatTime(p.CreatedAt),
		"updatedAt":   formatTime(p.UpdatedAt),
	}
}

func projectViewPayload(view ProjectView) map[string]any {
	payload := projectPayload(view.Project)
	payload["access"] = view.Access
	return payload
}

func requestPayload(req store.CollaborationRequest) map[string]any {
	return map[string]any{
		"id":          req.ID,
		"projectId":   req.ProjectID,
		"senderId":    req.SenderID,
		"receiverId":  req.ReceiverID,
		"status":      req.Status,
		"role":        req.Role,
		"permissions": req.Permissions,
		"message":     req.Message,
		"createdAt":   formatTime(req.CreatedAt),
		"updatedAt":   formatTime(req.UpdatedAt),
	}
}

func requestPayloads(requests []store.CollaborationRequest) []map[string]any {
	items := make([]map[string]any, 0, len(requests))
	for _, req := range requests {
		items = append(items, requestPayload(req))
	}
	return items
}

func messagePayload(msg store.Message) map[string]any {
	return map[string]any{
		"id":        msg.ID,
		"projectId": msg.ProjectID,
		"senderId":  msg.SenderID,
		"body":      msg.Body,
		"createdAt": formatTime(msg.CreatedAt),
	}
}

func uploadPayload(view UploadView) map[string]any {
	payload := map[string]any{
		"id":          view.ID,
		"projectId":   view.ProjectID,
		"uploaderId":  view.UploaderID,
		"fileName":    view.FileName,
		"contentType": view.ContentType,
		"sizeBytes":   view.SizeBytes,
		"createdAt":   formatTime(view.CreatedAt),
	}
	if view.URL != "" {
		payload["url"] = view.URL
	}
	return payload
}

func revisionPayload(revision history.Revision) map[string]any {
	changes := make([]map[string]any, 0, len(revision.Changes))
	for _, change := range revision.Changes {
		changes = append(changes, map[string]any{
			"field":  change.Field,
			"before": change.Before,
			"after":  change.After,
		})
	}
	return map[string]any{
		"hash":      revision.Hash,
		"message":   revision.Message,
		"author":    revision.Author,
		"createdAt": formatTime(revision.CreatedAt),
		"changes":   changes,
	}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
