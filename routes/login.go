package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/rotaclock/backend/db"
	"github.com/rotaclock/backend/models"
)

type LoginResponse struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
}

// signToken creates an HS256 JWT carrying the identity the attendance
// handlers rely on.
func signToken(userID, username, role string) (string, error) {
	godotenv.Load()
	jwtSecret := []byte(os.Getenv("JWT_SECRET"))

	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"role":     []string{role},
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// Login authenticates a user and issues a token.
func Login(database *db.Database) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		if !decodeJSON(w, r, &u) {
			return
		}

		if u.Username == "" || u.Password == "" {
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()

		var hashedPassword, userID, role string
		query := `SELECT user_id, password, role FROM users WHERE username = $1 LIMIT 1`
		err := database.Pool().QueryRow(ctx, query, u.Username).Scan(&userID, &hashedPassword, &role)

		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		} else if err != nil {
			slog.Error("login query failed", "error", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(u.Password)); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}

		token, err := signToken(userID, u.Username, role)
		if err != nil {
			slog.Error("token signing failed", "error", err)
			writeError(w, http.StatusInternalServerError, "could not issue token")
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{Status: "logged_in", Token: token})
	}
}
