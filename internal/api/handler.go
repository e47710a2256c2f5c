package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"pharmapos/m/domain"
	"pharmapos/m/internal/billing"
	"pharmapos/m/internal/cart"
	"pharmapos/m/internal/session"
	"pharmapos/m/internal/store"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db        *sqlx.DB
	secret    string
	inventory *store.Inventory
	ledger    *store.Ledger
	carts     *cart.Manager
	billing   *billing.Workflow
	sessions  *session.Issuer
}

// New constructs a Handler and the components behind it.
func New(db *sqlx.DB, secret string) *Handler {
	inventory := store.NewInventory(db)
	ledger := store.NewLedger(db)
	carts := cart.NewManager(inventory)
	return &Handler{
		db:        db,
		secret:    secret,
		inventory: inventory,
		ledger:    ledger,
		carts:     carts,
		billing:   billing.NewWorkflow(db, inventory, ledger, carts),
		sessions:  session.NewIssuer(secret),
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Get("/", h.index)
	r.Get("/add", h.addMedicineForm)
	r.Post("/add", h.addMedicine)
	r.Get("/delete/{id}", h.deleteMedicine)
	r.Get("/bill", h.showBill)
	r.Post("/bill", h.addToBill)
	r.Get("/finalize_bill", h.finalizeBill)
	r.Get("/sales", h.listSales)
	r.Get("/search", h.search)
	r.Get("/filter", h.filterMedicines)
	r.Get("/live_search", h.liveSearch)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)
		pr.Route("/reports", func(r chi.Router) {
			r.Get("/sales/daily", h.dailySales)
			r.Get("/sales/monthly", h.monthlySales)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Inventory handlers

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	medicines, err := h.inventory.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list medicines")
		return
	}
	if medicines == nil {
		medicines = []domain.Medicine{}
	}
	expired := domain.ExpiredNames(medicines, time.Now())
	if expired == nil {
		expired = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"medicines": medicines, "expired": expired})
}

func (h *Handler) addMedicineForm(w http.ResponseWriter, r *http.Request) {
	// Supplier options for the add/filter forms.
	var suppliers []string
	if err := h.db.SelectContext(r.Context(), &suppliers, `SELECT DISTINCT supplier FROM medicines WHERE supplier IS NOT NULL AND supplier != '' ORDER BY supplier`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list suppliers")
		return
	}
	if suppliers == nil {
		suppliers = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
}

func (h *Handler) addMedicine(w http.ResponseWriter, r *http.Request) {
	price, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("price")), 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "price must be a number")
		return
	}
	quantity, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("quantity")), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "quantity must be an integer")
		return
	}

	_, err = h.inventory.Add(r.Context(), domain.Medicine{
		Name:     r.FormValue("name"),
		Price:    price,
		Quantity: quantity,
		Expiry:   r.FormValue("expiry"),
		Supplier: r.FormValue("supplier"),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to add medicine")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) deleteMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}
	if err := h.inventory.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "medicine not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to delete medicine")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Billing handlers

// sessionID resolves the cart session from the request cookie, minting a
// fresh session and setting the cookie when there is none.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	if c, err := r.Cookie(session.CookieName); err == nil {
		if sid, err := h.sessions.Parse(c.Value); err == nil {
			return sid, nil
		}
	}
	sid, signed, err := h.sessions.Issue()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
	})
	return sid, nil
}

type billResponse struct {
	Medicines []domain.Medicine `json:"medicines"`
	Cart      []domain.CartItem `json:"cart"`
	Total     float64           `json:"total"`
}

func (h *Handler) respondBill(w http.ResponseWriter, r *http.Request, sid string) {
	medicines, err := h.inventory.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list medicines")
		return
	}
	if medicines == nil {
		medicines = []domain.Medicine{}
	}
	respondJSON(w, http.StatusOK, billResponse{
		Medicines: medicines,
		Cart:      h.carts.Get(sid),
		Total:     h.carts.Total(sid),
	})
}

func (h *Handler) showBill(w http.ResponseWriter, r *http.Request) {
	sid, err := h.sessionID(w, r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to start session")
		return
	}
	h.respondBill(w, r, sid)
}

func (h *Handler) addToBill(w http.ResponseWriter, r *http.Request) {
	sid, err := h.sessionID(w, r)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to start session")
		return
	}
	medicineID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("medicine")), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "medicine must be an id")
		return
	}
	qty, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("qty")), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "qty must be an integer")
		return
	}

	// A missing medicine or short stock is a silent no-op; the caller sees
	// the unchanged cart in the response.
	if _, err := h.carts.Add(r.Context(), sid, medicineID, qty); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to add to cart")
		return
	}
	h.respondBill(w, r, sid)
}

func (h *Handler) finalizeBill(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(session.CookieName)
	if err != nil {
		http.Redirect(w, r, "/bill", http.StatusSeeOther)
		return
	}
	sid, err := h.sessions.Parse(c.Value)
	if err != nil {
		http.Redirect(w, r, "/bill", http.StatusSeeOther)
		return
	}
	if _, err := h.billing.Finalize(r.Context(), sid); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to finalize bill")
		return
	}
	http.Redirect(w, r, "/bill", http.StatusSeeOther)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.ledger.ListRecentFirst(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list sales")
		return
	}
	if sales == nil {
		sales = []domain.Sale{}
	}
	respondJSON(w, http.StatusOK, sales)
}

// Search and filter handlers

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	medicines, err := h.inventory.Search(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to search medicines")
		return
	}
	if medicines == nil {
		medicines = []domain.Medicine{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"medicines": medicines, "expired": []string{}})
}

func (h *Handler) filterMedicines(w http.ResponseWriter, r *http.Request) {
	params := store.FilterParams{
		Name:        r.URL.Query().Get("q"),
		Supplier:    r.URL.Query().Get("supplier"),
		LowStock:    r.URL.Query().Get("stock") == "low",
		ExpiredOnly: r.URL.Query().Get("expiry") == "expired",
		Today:       time.Now().Format("2006-01-02"),
	}
	medicines, err := h.inventory.Filter(r.Context(), params)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to filter medicines")
		return
	}
	if medicines == nil {
		medicines = []domain.Medicine{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"medicines": medicines, "expired": []string{}})
}

type liveSearchResult struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Qty      int64   `json:"qty"`
	Expiry   string  `json:"expiry"`
	Supplier string  `json:"supplier"`
}

func (h *Handler) liveSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	medicines, err := h.inventory.Search(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to search medicines")
		return
	}
	results := make([]liveSearchResult, len(medicines))
	for i, m := range medicines {
		results[i] = liveSearchResult{
			ID:       m.ID,
			Name:     m.Name,
			Price:    m.Price,
			Qty:      m.Quantity,
			Expiry:   m.Expiry,
			Supplier: m.Supplier,
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"medicines": results})
}

// Authentication helpers

type authClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID int64, role string) (string, error) {
	claims := authClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Auth handlers

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		respondError(w, http.StatusBadRequest, "username, email, password and role are required")
		return
	}
	if req.Role != "owner" && req.Role != "employee" {
		respondError(w, http.StatusBadRequest, "role must be owner or employee")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}

	var userID int64
	err = h.db.QueryRowxContext(r.Context(), `INSERT INTO users (username, email, password, role) VALUES ($1, $2, $3, $4) RETURNING id`,
		req.Username, strings.ToLower(req.Email), hashed, req.Role).Scan(&userID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "unique constraint") {
			respondError(w, http.StatusConflict, "email already exists")
		} else {
			respondError(w, http.StatusInternalServerError, "db error: "+err.Error())
		}
		return
	}

	token, err := h.generateToken(userID, req.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: domain.User{ID: userID, Username: req.Username, Email: strings.ToLower(req.Email), Role: req.Role}})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user domain.User
	err := h.db.GetContext(r.Context(), &user, `SELECT id, username, email, password, role FROM users WHERE email = $1`, strings.ToLower(req.Email))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "new_password is required")
		return
	}
	uid := r.Context().Value(ctxUserID).(int64)
	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `UPDATE users SET password = $1 WHERE id = $2`, hashed, uid); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update password")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// Reports

func (h *Handler) dailySales(w http.ResponseWriter, r *http.Request) {
	revenue, count, err := h.ledger.DailyRevenue(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch daily sales")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"revenue": revenue, "sales_count": count})
}

func (h *Handler) monthlySales(w http.ResponseWriter, r *http.Request) {
	revenue, count, err := h.ledger.MonthlyRevenue(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch monthly sales")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"revenue": revenue, "sales_count": count})
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
