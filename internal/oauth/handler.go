package oauth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"mealmcp/internal/auth"
	"mealmcp/pkg/logging"
)

// Handler exposes the authorization server over HTTP.
type Handler struct {
	server *Server
	users  *auth.Store
}

// NewHandler creates the HTTP layer for the authorization server.
func NewHandler(server *Server, users *auth.Store) *Handler {
	return &Handler{server: server, users: users}
}

// Register mounts all OAuth endpoints on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/.well-known/oauth-authorization-server", h.HandleMetadata)
	mux.HandleFunc("/.well-known/oauth-protected-resource", h.HandleProtectedResource)
	mux.HandleFunc("/register", h.HandleRegister)
	mux.HandleFunc("/authorize", h.HandleAuthorize)
	mux.HandleFunc("/signup", h.HandleSignup)
	mux.HandleFunc("/token", h.HandleToken)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("OAuth", err, "Failed to encode response body")
	}
}

// writeOAuthError maps protocol errors to their HTTP status. Internal
// faults become an opaque server_error.
func writeOAuthError(w http.ResponseWriter, err error) {
	var oerr *Error
	if !errors.As(err, &oerr) {
		logging.Error("OAuth", err, "Internal error in OAuth endpoint")
		writeJSON(w, http.StatusInternalServerError, &Error{Code: ErrorServerError})
		return
	}

	status := http.StatusBadRequest
	if oerr.Code == ErrorInvalidClient {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, oerr)
}

// HandleMetadata serves the RFC 8414 discovery document.
func (h *Handler) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.server.Metadata())
}

// HandleProtectedResource serves the RFC 9728 resource metadata document.
func (h *Handler) HandleProtectedResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.server.ProtectedResourceMetadata())
}

type registrationRequest struct {
	ClientName   string   `json:"client_name"`
	RedirectURIs []string `json:"redirect_uris"`
}

// HandleRegister implements RFC 7591 dynamic client registration.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOAuthError(w, NewError(ErrorInvalidRequest, "request body is not valid JSON"))
		return
	}

	client, err := h.server.RegisterClient(r.Context(), req.ClientName, req.RedirectURIs)
	if err != nil {
		writeOAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

// HandleAuthorize serves the login form (GET) and processes credentials
// (POST). Validation failures that predate a trusted redirect URI render an
// error page instead of redirecting anywhere.
func (h *Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		req, err := h.server.ValidateAuthorizeRequest(r.Context(), r.URL.Query())
		if err != nil {
			logging.Warn("OAuth", "Rejected authorize request: %v", err)
			renderErrorPage(w, http.StatusBadRequest, err.Error())
			return
		}
		renderLoginPage(w, req, "")

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			renderErrorPage(w, http.StatusBadRequest, "malformed form submission")
			return
		}
		req, err := h.server.ValidateAuthorizeRequest(r.Context(), authorizeValuesFromForm(r.PostForm))
		if err != nil {
			renderErrorPage(w, http.StatusBadRequest, err.Error())
			return
		}

		user, err := h.users.Authenticate(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
		if err != nil {
			// One message for every failure mode; existence of accounts
			// is not disclosed.
			renderLoginPage(w, req, "Invalid username or password.")
			return
		}

		redirect, err := h.server.IssueCode(r.Context(), req, user.ID)
		if err != nil {
			logging.Error("OAuth", err, "Failed to issue authorization code")
			renderErrorPage(w, http.StatusInternalServerError, "internal error")
			return
		}
		http.Redirect(w, r, redirect, http.StatusFound)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSignup lets a new user create an account mid-flow and land straight
// back in the authorization redirect.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		req, err := h.server.ValidateAuthorizeRequest(r.Context(), r.URL.Query())
		if err != nil {
			renderErrorPage(w, http.StatusBadRequest, err.Error())
			return
		}
		renderSignupPage(w, req, "")

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			renderErrorPage(w, http.StatusBadRequest, "malformed form submission")
			return
		}
		req, err := h.server.ValidateAuthorizeRequest(r.Context(), authorizeValuesFromForm(r.PostForm))
		if err != nil {
			renderErrorPage(w, http.StatusBadRequest, err.Error())
			return
		}

		user, err := h.users.Register(r.Context(),
			r.PostFormValue("username"), r.PostFormValue("email"), r.PostFormValue("password"), "")
		if err != nil {
			msg := "Could not create the account."
			if errors.Is(err, auth.ErrWeakPassword) {
				msg = "Password must be at least 8 characters."
			} else if errors.Is(err, auth.ErrUserExists) {
				msg = "That username or email is already taken."
			}
			renderSignupPage(w, req, msg)
			return
		}

		redirect, err := h.server.IssueCode(r.Context(), req, user.ID)
		if err != nil {
			logging.Error("OAuth", err, "Failed to issue authorization code after signup")
			renderErrorPage(w, http.StatusInternalServerError, "internal error")
			return
		}
		http.Redirect(w, r, redirect, http.StatusFound)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleToken implements the token endpoint for both grant types.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, NewError(ErrorInvalidRequest, "request body is not valid form data"))
		return
	}

	resp, err := h.server.Exchange(r.Context(), r.PostForm)
	if err != nil {
		writeOAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// authorizeValuesFromForm rebuilds the /authorize query from the hidden
// form fields of the login and signup pages.
func authorizeValuesFromForm(form url.Values) url.Values {
	return url.Values{
		"response_type":         {"code"},
		"client_id":             {form.Get("client_id")},
		"redirect_uri":          {form.Get("redirect_uri")},
		"scope":                 {form.Get("scope")},
		"state":                 {form.Get("state")},
		"code_challenge":        {form.Get("code_challenge")},
		"code_challenge_method": {"S256"},
	}
}
