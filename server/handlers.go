package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aouyang1/go-marketmaster"
	"github.com/aouyang1/go-marketmaster/chart"
	"github.com/aouyang1/go-marketmaster/export"
	"github.com/aouyang1/go-marketmaster/models"
	"github.com/aouyang1/go-marketmaster/source"
	"github.com/aouyang1/go-marketmaster/theme"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/goccy/go-json"
)

// SessionView is the JSON snapshot of a session returned by every session endpoint
type SessionView struct {
	ID        string               `json:"id"`
	Stage     marketmaster.Stage   `json:"stage"`
	Theme     theme.Theme          `json:"theme"`
	Labels    theme.Labels         `json:"labels"`
	Flags     marketmaster.FlagSet `json:"flags"`
	Progress  float64              `json:"progress"`
	Available []marketmaster.Stage `json:"available"`
	Warnings  []string             `json:"warnings,omitempty"`
	Symbol    string               `json:"symbol,omitempty"`
	LastPrice *float64             `json:"last_price,omitempty"`
	Charts    []string             `json:"charts"`
}

// StageResponse pairs the session snapshot with the report of the stage that ran
type StageResponse struct {
	Session SessionView `json:"session"`
	Report  any         `json:"report,omitempty"`
}

func view(s *Session, p *marketmaster.Pipeline, board *chart.Board) SessionView {
	st := p.State()
	return SessionView{
		ID:        s.ID.String(),
		Stage:     st.CurrentStage,
		Theme:     p.Theme(),
		Labels:    p.Theme().Labels(),
		Flags:     st.Flags,
		Progress:  p.Progress(),
		Available: p.Available(),
		Warnings:  st.Warnings,
		Symbol:    st.LastSymbol,
		LastPrice: st.LastPrice,
		Charts:    board.Groups(),
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	p := problem(err)
	switch {
	case p.Level == levelWarning:
		s.logger.Warn("request blocked", "path", r.URL.Path, "stage", p.Stage, "error", err.Error())
	case p.Status >= http.StatusInternalServerError:
		s.logger.Error("request failed", "path", r.URL.Path, "status", p.Status, "error", err.Error())
	default:
		s.logger.Info("request rejected", "path", r.URL.Path, "status", p.Status, "error", err.Error())
	}
	_ = render.Render(w, r, p)
}

// decode reads an optional JSON body into v and validates it. An empty body leaves v untouched.
func (s *Server) decode(r *http.Request, v any) error {
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w, %w", ErrDecodeBody, err)
		}
	}
	return s.validate.Struct(v)
}

// run executes a session operation under the session lock and responds with the snapshot and
// the operation's report
func (s *Server) run(w http.ResponseWriter, r *http.Request, label string, op func(p *marketmaster.Pipeline, board *chart.Board) (any, error)) {
	sess, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var resp StageResponse
	err = sess.Do(func(p *marketmaster.Pipeline, board *chart.Board) error {
		report, err := op(p, board)
		if err != nil {
			return err
		}
		resp = StageResponse{Session: view(sess, p, board), Report: report}
		return nil
	})
	s.metrics.StageRuns.WithLabelValues(label, outcome(err)).Inc()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess := newSession(s.opt.Pipeline, s.fetcher, s.opt.Logger)
	s.store.Add(sess)
	s.metrics.Sessions.Inc()
	s.logger.Info("created session", "session", sess.ID.String())

	var v SessionView
	_ = sess.Do(func(p *marketmaster.Pipeline, board *chart.Board) error {
		v = view(sess, p, board)
		return nil
	})
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, v)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "view", func(p *marketmaster.Pipeline, _ *chart.Board) (any, error) {
		return nil, nil
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.store.Delete(chi.URLParam(r, "id")) {
		s.fail(w, r, ErrSessionNotFound)
		return
	}
	s.metrics.Sessions.Dec()
	w.WriteHeader(http.StatusNoContent)
}

type themeRequest struct {
	Theme theme.Theme `json:"theme"`
}

func (s *Server) setTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, "theme", func(p *marketmaster.Pipeline, _ *chart.Board) (any, error) {
		p.SetTheme(req.Theme)
		return nil, nil
	})
}

func (s *Server) next(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "next", func(p *marketmaster.Pipeline, _ *chart.Board) (any, error) {
		return nil, p.Next()
	})
}

func (s *Server) jump(w http.ResponseWriter, r *http.Request) {
	stage, err := marketmaster.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, "jump", func(p *marketmaster.Pipeline, _ *chart.Board) (any, error) {
		return nil, p.Jump(stage)
	})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "reset", func(p *marketmaster.Pipeline, board *chart.Board) (any, error) {
		p.Reset()
		board.Clear()
		return nil, nil
	})
}

func (s *Server) loadUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opt.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opt.MaxUploadBytes); err != nil {
		s.fail(w, r, fmt.Errorf("%w, %w", ErrDecodeBody, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w, %w", ErrNoFile, err))
		return
	}
	defer file.Close()

	s.run(w, r, marketmaster.StageLoad.String(), func(p *marketmaster.Pipeline, _ *chart.Board) (any, error) {
		return p.LoadFile(header.Filename, file)
	})
}

func (s *Server) loadRemote(w http.ResponseWriter, r *http.Request) {
	var req source.Request
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.run(w, r, marketmaster.StageLoad.String(), func(p *marketmaster.Pipeline, _ *chart.Board) (any, error) {
		return p.LoadRemote(r.Context(), req)
	})
}

func (s *Server) preprocess(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, marketmaster.StagePreprocess.String(), func(p *marketmaster.Pipeline, _ *chart.Board) (any, error) {
		return p.Preprocess()
	})
}

type featuresRequest struct {
	Window      int      `json:"window" validate:"omitempty,min=5,max=50"`
	Target      string   `json:"target" validate:"required"`
	Features    []string `json:"features" validate:"required,min=1,dive,required"`
	Standardize *bool    `json:"standardize"`
}

func (s *Server) features(w http.ResponseWriter, r *http.Request) {
	var req featuresRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	opt := marketmaster.NewDefaultFeatureOptions()
	if s.opt.Pipeline.Features != nil {
		*opt = *s.opt.Pipeline.Features
	}
	if req.Window != 0 {
		opt.Window = req.Window
	}
	if req.Standardize != nil {
		opt.Standardize = *req.Standardize
	}
	opt.Target = req.Target
	opt.Features = req.Features

	s.run(w, r, marketmaster.StageFeatures.String(), func(p *marketmaster.Pipeline, _ *chart.Board) (any, error) {
		return p.EngineerFeatures(opt)
	})
}

type splitRequest struct {
	TestSize *float64 `json:"test_size" validate:"omitempty,gte=0.1,lte=0.4"`
	Seed     *int64   `json:"seed" validate:"omitempty,gte=0"`
}

func (s *Server) split(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	opt := marketmaster.NewDefaultSplitOptions()
	if s.opt.Pipeline.Split != nil {
		*opt = *s.opt.Pipeline.Split
	}
	if req.TestSize != nil {
		opt.TestSize = *req.TestSize
	}
	if req.Seed != nil {
		opt.Seed = *req.Seed
	}

	s.run(w, r, marketmaster.StageSplit.String(), func(p *marketmaster.Pipeline, _ *chart.Board) (any, error) {
		return p.Split(opt)
	})
}

type trainRequest struct {
	Variants []models.Variant `json:"variants" validate:"required,min=1"`
	Clusters int              `json:"clusters" validate:"omitempty,min=2,max=10"`
}

func (s *Server) train(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	opt := marketmaster.NewDefaultTrainOptions()
	if s.opt.Pipeline.Train != nil {
		opt.Clusters = s.opt.Pipeline.Train.Clusters
	}
	if req.Clusters != 0 {
		opt.Clusters = req.Clusters
	}
	opt.Variants = req.Variants

	s.run(w, r, marketmaster.StageTrain.String(), func(p *marketmaster.Pipeline, _ *chart.Board) (any, error) {
		return p.Train(opt)
	})
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, marketmaster.StageEvaluate.String(), func(p *marketmaster.Pipeline, _ *chart.Board) (any, error) {
		return p.Evaluate()
	})
}

func (s *Server) results(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, marketmaster.StageResults.String(), func(p *marketmaster.Pipeline, _ *chart.Board) (any, error) {
		return p.Results()
	})
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	v, err := models.ParseVariant(chi.URLParam(r, "variant"))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w, %w", err, marketmaster.ErrValidation))
		return
	}
	sess, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	err = sess.Do(func(p *marketmaster.Pipeline, _ *chart.Board) error {
		return p.Export(&buf, v)
	})
	s.metrics.StageRuns.WithLabelValues("export", outcome(err)).Inc()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(v)))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) charts(w http.ResponseWriter, r *http.Request) {
	stage, err := marketmaster.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	err = sess.Do(func(p *marketmaster.Pipeline, board *chart.Board) error {
		labels := p.Theme().Labels()
		opt := chart.NewDefaultRenderOptions()
		if labels.Echarts != "" {
			opt.Theme = labels.Echarts
		}
		opt.PageTitle = fmt.Sprintf("%s: %s", labels.Title, labels.Stages[stage])
		return chart.Render(&buf, board.Specs(stage.String()), opt)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
