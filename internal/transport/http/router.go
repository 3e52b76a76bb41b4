package http

import (
	"net/http"
	"strconv"
	"time"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// API serves the REST surface of the engine.
type API struct {
	assessments *app.AssessmentService
	reviews     *app.ReviewService
}

func NewAPI(assessments *app.AssessmentService, reviews *app.ReviewService) *API {
	return &API{assessments: assessments, reviews: reviews}
}

// NewRouter mounts the REST API and the live attempt websocket.
func NewRouter(api *API, ws *WSHandler, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if ws != nil {
		r.Get("/ws/attempt", ws.ServeWS)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Route("/api/v1", func(v1 chi.Router) {
			v1.Route("/assessments/{assessmentID}", func(ar chi.Router) {
				ar.Post("/access", api.access)
				ar.Post("/submissions", api.submit)
				ar.Get("/submissions", api.summary)
				ar.Post("/run", api.run)
			})
			v1.Route("/submissions/{submissionID}", func(sr chi.Router) {
				sr.Get("/", api.submission)
				sr.Post("/regrade", api.regrade)
				sr.Get("/review", api.reviewQueue)
				sr.Post("/review/finish", api.finishReview)
				sr.Put("/review/{questionID}", api.assignMark)
			})
			v1.Get("/problems/{problemID}/stats", api.problemStats)
		})
	})
	return r
}

type accessRequest struct {
	CandidateID string `json:"candidateId"`
}

func (a *API) access(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.CandidateID == "" {
		respondError(w, r, errBadRequestf("candidateId is required"))
		return
	}
	def, err := a.assessments.VerifyAccess(r.Context(), chi.URLParam(r, "assessmentID"), req.CandidateID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newAssessmentView(def))
}

type submitRequest struct {
	CandidateID   string          `json:"candidateId"`
	CandidateName string          `json:"candidateName"`
	Email         string          `json:"email"`
	Answers       domain.Answers  `json:"answers"`
	Offenses      domain.Offenses `json:"offenses"`
	Timer         int             `json:"timer"`
	RecordingRef  string          `json:"recordingRef"`
}

func (a *API) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.CandidateID == "" {
		respondError(w, r, errBadRequestf("candidateId is required"))
		return
	}
	sub, err := a.assessments.Submit(r.Context(), app.SubmitRequest{
		AssessmentID:  chi.URLParam(r, "assessmentID"),
		CandidateID:   req.CandidateID,
		CandidateName: req.CandidateName,
		Email:         req.Email,
		Answers:       req.Answers,
		Offenses:      req.Offenses,
		Timer:         req.Timer,
		RecordingRef:  req.RecordingRef,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

type runRequest struct {
	QuestionID string `json:"questionId"`
	Language   string `json:"language"`
	Source     string `json:"source"`
}

func (a *API) run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	res, err := a.assessments.RunCode(r.Context(), chi.URLParam(r, "assessmentID"), req.QuestionID,
		domain.Code{Language: req.Language, Source: req.Source})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (a *API) summary(w http.ResponseWriter, r *http.Request) {
	out, err := a.reviews.Summary(r.Context(), chi.URLParam(r, "assessmentID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (a *API) submission(w http.ResponseWriter, r *http.Request) {
	sub, err := a.assessments.Submission(r.Context(), chi.URLParam(r, "submissionID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

func (a *API) regrade(w http.ResponseWriter, r *http.Request) {
	sub, err := a.assessments.Regrade(r.Context(), chi.URLParam(r, "submissionID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

func (a *API) reviewQueue(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	out, err := a.reviews.Queue(r.Context(), chi.URLParam(r, "submissionID"), page, size)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

type markRequest struct {
	Mark     *float64 `json:"mark"`
	Reviewer string   `json:"reviewer"`
}

func (a *API) assignMark(w http.ResponseWriter, r *http.Request) {
	var req markRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Mark == nil {
		respondError(w, r, errBadRequestf("mark is required"))
		return
	}
	sub, err := a.reviews.AssignMark(r.Context(), chi.URLParam(r, "submissionID"),
		chi.URLParam(r, "questionID"), *req.Mark, req.Reviewer)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

type finishRequest struct {
	Reviewer string `json:"reviewer"`
}

func (a *API) finishReview(w http.ResponseWriter, r *http.Request) {
	var req finishRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	sub, err := a.reviews.Finish(r.Context(), chi.URLParam(r, "submissionID"), req.Reviewer)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

func (a *API) problemStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.assessments.ProblemStats(r.Context(), chi.URLParam(r, "problemID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		domain.ProblemStats
		AcceptanceRate float64 `json:"acceptanceRate"`
	}{st, st.AcceptanceRate()})
}
