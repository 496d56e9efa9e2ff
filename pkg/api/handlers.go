package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/platinummonkey/rewind/pkg/changelog"
	"github.com/platinummonkey/rewind/pkg/httputil"
	"github.com/platinummonkey/rewind/pkg/observability"
)

var errNoVersions = errors.New("no API versions are declared")

// VersionsResponse lists the declared versions, newest first
type VersionsResponse struct {
	Header   string        `json:"header"`
	Versions []VersionInfo `json:"versions"`
}

// VersionInfo describes one declared version
type VersionInfo struct {
	Value   string       `json:"value"`
	Changes []ChangeInfo `json:"changes"`
}

// ChangeInfo describes one version change of a version
type ChangeInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SideEffects bool   `json:"side_effects"`
	Hidden      bool   `json:"hidden,omitempty"`
}

// listVersions handles GET /_rewind/versions. Changes hidden from the
// changelog are only listed with ?hidden=true.
func (s *Server) listVersions(w http.ResponseWriter, r *http.Request) {
	showHidden, err := httputil.ParseQueryBool(r, "hidden", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	resp := VersionsResponse{Header: s.header, Versions: []VersionInfo{}}
	for _, v := range s.bundle.Versions() {
		info := VersionInfo{Value: v.Date.String(), Changes: []ChangeInfo{}}
		for _, vc := range v.Changes {
			if vc.HiddenFromChangelog() && !showHidden {
				continue
			}
			info.Changes = append(info.Changes, ChangeInfo{
				Name:        vc.Name(),
				Description: vc.Description(),
				SideEffects: vc.HasSideEffects(),
				Hidden:      vc.HiddenFromChangelog(),
			})
		}
		resp.Versions = append(resp.Versions, info)
	}
	if err := httputil.WriteJSON(w, http.StatusOK, resp); err != nil {
		observability.FromContext(r.Context()).WithError(err).Debug("Failed to write versions")
	}
}

var changelogContentTypes = map[changelog.Format]string{
	changelog.FormatJSON:     "application/json",
	changelog.FormatYAML:     "application/yaml",
	changelog.FormatMarkdown: "text/markdown; charset=utf-8",
}

// getChangelog handles GET /_rewind/changelog?format=json|yaml|markdown
func (s *Server) getChangelog(w http.ResponseWriter, r *http.Request) {
	if s.changelog == nil {
		httputil.WriteNotFound(w)
		return
	}
	format, err := changelog.ParseFormat(httputil.ParseQueryString(r, "format", string(changelog.FormatJSON)))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := s.changelog.Write(&buf, format); err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to encode changelog")
		httputil.WriteInternalError(w)
		return
	}
	headers := http.Header{"Content-Type": []string{changelogContentTypes[format]}}
	if err := httputil.WriteBody(w, http.StatusOK, headers, buf.Bytes()); err != nil {
		observability.FromContext(r.Context()).WithError(err).Debug("Failed to write changelog")
	}
}
