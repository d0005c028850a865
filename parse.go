package transit

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"
)

// parseBody resolves the payload kind for a successful response. An explicit
// ParseAs wins; otherwise the Content-Type decides. A 204 or empty body
// short-circuits regardless of any declared content type. A body that
// declares JSON but does not parse is a server bug surfaced as an APIError;
// an unparsable body with no declared type degrades to text instead of
// failing.
func parseBody(opt ParseMode, status int, header http.Header, body []byte, requestID string) (ParseMode, error) {
	if status == http.StatusNoContent || len(body) == 0 {
		return parseNone, nil
	}

	switch opt {
	case ParseBlob:
		return ParseBlob, nil
	case ParseText:
		return ParseText, nil
	case ParseJSON:
		if !json.Valid(body) {
			return 0, &APIError{Message: "invalid-json", Status: status, RequestID: requestID, DebugMessage: truncate(string(body), 512)}
		}
		return ParseJSON, nil
	}

	ct := contentType(header)
	switch {
	case ct == "application/pdf" || ct == "application/zip":
		return ParseBlob, nil
	case ct == "text/html" || ct == "text/plain":
		return ParseText, nil
	case strings.Contains(ct, "json"):
		if !json.Valid(body) {
			return 0, &APIError{Message: "invalid-json", Status: status, RequestID: requestID, DebugMessage: truncate(string(body), 512)}
		}
		return ParseJSON, nil
	default:
		if json.Valid(body) {
			return ParseJSON, nil
		}
		return ParseText, nil
	}
}

func contentType(header http.Header) string {
	raw := header.Get("Content-Type")
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return mediaType
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
