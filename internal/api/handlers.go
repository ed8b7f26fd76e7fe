package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/promo-games-go/internal/engine"
	"github.com/MJE43/promo-games-go/internal/games"
	"github.com/MJE43/promo-games-go/internal/promo"
)

const (
	contactThanks = "Thank you for your interest! We will contact you soon."
	contactFailed = "Something went wrong. Please try again later."
)

// handleContact accepts the site's contact form.
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	var form promo.ContactForm
	if err := decodeJSON(w, r, &form); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ContactResponse{Success: false, Message: err.Error()})
		return
	}

	if _, err := s.svc.SubmitContact(r.Context(), form); err != nil {
		if errors.Is(err, promo.ErrInvalidInput) {
			s.writeJSON(w, http.StatusBadRequest, ContactResponse{Success: false, Message: err.Error()})
			return
		}
		s.logger.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Error("contact submission failed")
		s.writeJSON(w, http.StatusInternalServerError, ContactResponse{Success: false, Message: contactFailed})
		return
	}
	s.writeJSON(w, http.StatusOK, ContactResponse{Success: true, Message: contactThanks})
}

// handleListGames returns the game registry
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GamesResponse{Games: games.ListGames(), ServerVersion: ServerVersion})
}

// handlePlan plans a rotation without touching any session.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", err.Error())
		return
	}
	if err := ValidatePlanRequest(&req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "plan", err.Error())
		return
	}

	policy := s.opts.RotationPolicy
	if req.Policy != nil {
		policy = *req.Policy
	}
	angle := 360 / float64(req.Segments)
	final, err := games.PlanRotation(req.Current, req.WinningIndex, angle, policy, engine.Default())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, PlanResponse{
		FinalRotation: final,
		SegmentAngle:  angle,
		PointerAngle:  games.PointerAngle(final),
		SegmentAtRest: games.SegmentAt(final, angle),
	})
}

func (s *Server) handleLoadWheel(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.LoadWheel(r.Context(), chi.URLParam(r, "wheelID"), customerID(r))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSpin(w http.ResponseWriter, r *http.Request) {
	wheelID := chi.URLParam(r, "wheelID")
	out, err := s.svc.Spin(r.Context(), wheelID, customerID(r))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.securityLogger.LogAuditEvent(middleware.GetReqID(r.Context()), "spin", wheelID, "success", map[string]interface{}{
		"spin_id":     out.SpinID,
		"customer_id": customerID(r),
		"index":       out.Result.WinningIndex,
	})
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleClaimSpin(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", err.Error())
		return
	}
	if strings.TrimSpace(req.Receipt) == "" {
		s.errorHandler.HandleValidationError(w, r, "receipt", "receipt is required")
		return
	}

	out, err := s.svc.ClaimSpin(r.Context(), req.Receipt)
	if err != nil {
		if errors.Is(err, promo.ErrInvalidReceipt) {
			s.securityLogger.LogSecurityEvent(middleware.GetReqID(r.Context()), "invalid_receipt", err.Error(),
				map[string]interface{}{"receipt": req.Receipt}, r.RemoteAddr)
		}
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLoadScratchCard(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.LoadScratchCard(r.Context(), chi.URLParam(r, "cardID"), customerID(r))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleScratch(w http.ResponseWriter, r *http.Request) {
	var req StrokesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", err.Error())
		return
	}
	if err := ValidateStrokesRequest(&req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "strokes", err.Error())
		return
	}

	view, err := s.svc.Scratch(r.Context(), chi.URLParam(r, "cardID"), customerID(r), req.Strokes)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleClaimScratch(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.ClaimScratch(r.Context(), chi.URLParam(r, "cardID"), customerID(r))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLoadQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := s.svc.LoadQuiz(r.Context(), chi.URLParam(r, "quizID"), customerID(r), r.URL.Query().Get("type"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quiz)
}

func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req SubmitQuizRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", err.Error())
		return
	}
	customer := strings.TrimSpace(req.CustomerID)
	if customer == "" {
		customer = customerID(r)
	}

	out, err := s.svc.SubmitQuiz(r.Context(), promo.QuizSubmission{
		QuizID:        chi.URLParam(r, "quizID"),
		CustomerID:    customer,
		Answers:       req.Answers,
		Receipt:       req.Receipt,
		ScratchCardID: req.ScratchCardID,
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}
