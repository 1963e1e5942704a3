package api

import (
	"net/http"

	"github.com/RobinCoderZhao/frontier/internal/frontier/content"
	"github.com/RobinCoderZhao/frontier/internal/frontier/enrich"
	"github.com/RobinCoderZhao/frontier/internal/frontier/fetch"
)

// ArticlesResponse is the body of every article endpoint.
type ArticlesResponse struct {
	Articles     []enrich.Article `json:"articles"`
	TotalResults int              `json:"totalResults"`
	Fallback     bool             `json:"fallback"`
	Cause        string           `json:"cause,omitempty"`
}

func (s *Server) respondPage(w http.ResponseWriter, r *http.Request, page content.Page, err error, includeVideo bool) {
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	resp := ArticlesResponse{
		Articles:     s.content.EnrichAll(r.Context(), page.Articles, includeVideo),
		TotalResults: page.TotalResults,
		Fallback:     page.Fallback,
	}
	if page.Cause != nil {
		resp.Cause = fetch.Classify(page.Cause)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHeadlines() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageSize, err := intParam(r, "pageSize")
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		video, err := boolParam(r, "video")
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		page, err := s.content.Headlines(r.Context(), r.URL.Query().Get("category"), pageSize)
		s.respondPage(w, r, page, err, video)
	}
}

func (s *Server) handleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageSize, err := intParam(r, "pageSize")
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		pageNum, err := intParam(r, "page")
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		video, err := boolParam(r, "video")
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		page, err := s.content.Search(r.Context(), r.URL.Query().Get("q"), pageSize, pageNum)
		s.respondPage(w, r, page, err, video)
	}
}

func (s *Server) handleSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := s.content.BySource(r.Context(), r.PathValue("source"))
		s.respondPage(w, r, page, err, false)
	}
}

func (s *Server) handleRegions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string][]string{"regions": content.Regions()})
	}
}

func (s *Server) handleRegion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageSize, err := intParam(r, "pageSize")
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		pageNum, err := intParam(r, "page")
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		page, err := s.content.Region(r.Context(), r.PathValue("region"), pageSize, pageNum)
		s.respondPage(w, r, page, err, false)
	}
}

func (s *Server) handleRegionVideos() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := s.content.RegionVideos(r.Context(), r.PathValue("region"))
		if err != nil {
			s.respondFailure(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"videos": videos})
	}
}

func (s *Server) handleVideos() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intParam(r, "max")
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		videos, err := s.content.Videos(r.Context(), r.URL.Query().Get("q"), limit)
		if err != nil {
			s.respondFailure(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"videos": videos})
	}
}

func (s *Server) handleImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, err := s.content.FindImage(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			s.respondFailure(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"url": url})
	}
}

func (s *Server) handleRefresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.content.Refresh(r.Context(), s.warmCategories); err != nil {
			s.respondFailure(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"refreshed": true, "stats": s.content.Stats()})
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "stats": s.content.Stats()})
	}
}
