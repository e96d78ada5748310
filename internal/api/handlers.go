package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/IlyasAtabaev731/jar-bank/internal/domain/models"
	"github.com/IlyasAtabaev731/jar-bank/internal/ledger"
	"github.com/IlyasAtabaev731/jar-bank/internal/lib/apperr"
	"github.com/IlyasAtabaev731/jar-bank/internal/lib/jwt"
	"github.com/IlyasAtabaev731/jar-bank/internal/rates"
	"github.com/gorilla/mux"
)

const (
	defaultAvatar      = "https://example.com/default_avatar.png"
	projectName        = "Jar Bank"
	projectDescription = "Accounts, transfers and savings jars"
)

const maxBodyBytes = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Wrap(apperr.InvalidInput, "request body too large", err)
		}
		return apperr.Wrap(apperr.InvalidInput, "invalid JSON", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.InvalidInput, "invalid jar id")
	}
	return id, nil
}

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func (s *APIServer) registerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CredentialsRequest
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		id, err := s.ledger.Register(r.Context(), req.Username, req.Password)
		s.observe("register", err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusCreated, RegisterResponse{ID: id, Status: "success"})
	}
}

type TokenResponse struct {
	Token  string `json:"token"`
	Status string `json:"status"`
}

func (s *APIServer) tokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CredentialsRequest
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		user, err := s.ledger.Authenticate(r.Context(), req.Username, req.Password)
		s.observe("authenticate", err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		token, err := jwt.NewToken(user.ID, s.jwtSecret, s.tokenTTL)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, TokenResponse{Token: token, Status: "success"})
	}
}

type TransferRequest struct {
	ToUsername string `json:"to_username"`
	Amount     *int64 `json:"amount"`
}

func (s *APIServer) transferHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TransferRequest
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.ToUsername == "" || req.Amount == nil {
			s.writeError(w, r, apperr.New(apperr.InvalidInput, "missing to_username or amount"))
			return
		}

		err := s.ledger.Transfer(r.Context(), userIDFrom(r.Context()), req.ToUsername, *req.Amount)
		s.observe("transfer", err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, StatusResponse{Status: "success", Message: "transfer successful"})
	}
}

type HistoryItem struct {
	Type     string `json:"type"`
	Amount   int64  `json:"amount"`
	Sender   string `json:"sender,omitempty"`
	Receiver string `json:"receiver,omitempty"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

type HistoryResponse struct {
	Transactions []HistoryItem `json:"transactions_history"`
}

const (
	historyDateLayout = "02.01.2006"
	historyTimeLayout = "15:04"
)

func (s *APIServer) historyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.ledger.History(r.Context(), userIDFrom(r.Context()))
		s.observe("history", err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		items := make([]HistoryItem, 0, len(entries))
		for _, e := range entries {
			item := HistoryItem{
				Type:   e.Type,
				Amount: e.Amount,
				Date:   e.At.Format(historyDateLayout),
				Time:   e.At.Format(historyTimeLayout),
			}
			if e.Type == models.HistoryOutgoing {
				item.Receiver = e.Counterparty
			} else {
				item.Sender = e.Counterparty
			}
			items = append(items, item)
		}

		s.writeJSON(w, http.StatusOK, HistoryResponse{Transactions: items})
	}
}

type ProfileResponse struct {
	Username     string `json:"username"`
	Balance      int64  `json:"balance"`
	BalanceEuro  string `json:"balance_euro"`
	AvatarImg    string `json:"avatar_img"`
	AccessRights string `json:"access_rights"`
}

func (s *APIServer) profileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.ledger.Profile(r.Context(), userIDFrom(r.Context()))
		s.observe("profile", err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, ProfileResponse{
			Username:     user.Username,
			Balance:      user.Balance,
			BalanceEuro:  rates.ToDisplay(user.Balance, s.rates.Get(r.Context())),
			AvatarImg:    defaultAvatar,
			AccessRights: user.AccessRights,
		})
	}
}

type OverviewResponse struct {
	Project     string `json:"project"`
	Description string `json:"description"`
	CountUsers  int64  `json:"count_users"`
}

func (s *APIServer) overviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := s.ledger.Overview(r.Context())
		s.observe("overview", err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, OverviewResponse{
			Project:     projectName,
			Description: projectDescription,
			CountUsers:  count,
		})
	}
}

type JarsResponse struct {
	Jars []models.Jar `json:"jars"`
}

func (s *APIServer) jarsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jars, err := s.ledger.Jars(r.Context(), userIDFrom(r.Context()))
		s.observe("jars", err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, JarsResponse{Jars: jars})
	}
}

type CreateJarRequest struct {
	Name               string `json:"name"`
	Target             string `json:"target"`
	AccumulationAmount *int64 `json:"accumulation_amount"`
	Image              string `json:"image"`
}

func (s *APIServer) createJarHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateJarRequest
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.AccumulationAmount == nil {
			s.writeError(w, r, apperr.New(apperr.InvalidInput, "name, accumulation amount and target are required to create a jar"))
			return
		}

		id, err := s.ledger.CreateJar(r.Context(), userIDFrom(r.Context()), ledger.JarInput{
			Name:               req.Name,
			Target:             req.Target,
			AccumulationAmount: *req.AccumulationAmount,
			Image:              req.Image,
		})
		s.observe("create_jar", err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusCreated, RegisterResponse{ID: id, Status: "success"})
	}
}

type JarFundsRequest struct {
	Type   string `json:"type"`
	Amount *int64 `json:"amount"`
}

func (s *APIServer) jarFundsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jarID, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req JarFundsRequest
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.Type == "" || req.Amount == nil {
			s.writeError(w, r, apperr.New(apperr.InvalidInput, "type and amount are required for a jar operation"))
			return
		}

		err = s.ledger.MoveJarFunds(r.Context(), userIDFrom(r.Context()), jarID, *req.Amount, req.Type)
		s.observe("move_jar_funds", err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, StatusResponse{Status: "success", Message: "transfer successful"})
	}
}

type DeleteJarResponse struct {
	Status   string `json:"status"`
	Returned int64  `json:"returned"`
}

func (s *APIServer) deleteJarHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jarID, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		returned, err := s.ledger.DeleteJar(r.Context(), userIDFrom(r.Context()), jarID)
		s.observe("delete_jar", err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, DeleteJarResponse{Status: "success", Returned: returned})
	}
}

func (s *APIServer) adminToolsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.ledger.CheckAdmin(r.Context(), userIDFrom(r.Context()))
		s.observe("admin_tools", err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, StatusResponse{Status: "success", Message: "You have successfully logged into AdminTools"})
	}
}

type BanRequest struct {
	IsBanned    *bool  `json:"is_banned"`
	Reason      string `json:"reason"`
	UnbanReason string `json:"unban_reason"`
}

func (s *APIServer) banHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BanRequest
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.IsBanned == nil {
			s.writeError(w, r, apperr.New(apperr.InvalidInput, "is_banned is required"))
			return
		}

		change := ledger.BanChange{Banned: *req.IsBanned, Reason: req.Reason}
		if !change.Banned {
			change.Reason = req.UnbanReason
		}

		err := s.ledger.SetBan(r.Context(), userIDFrom(r.Context()), mux.Vars(r)["username"], change)
		s.observe("set_ban", err)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, StatusResponse{Status: "success", Message: "done"})
	}
}
