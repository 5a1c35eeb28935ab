package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/rotaclock/backend/db"
	"github.com/rotaclock/backend/models"
)

// CreateUser registers a user account. Admin only.
func CreateUser(database *db.Database) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		if !decodeJSON(w, r, &u) {
			return
		}

		if u.Name == "" || u.Password == "" || u.Username == "" || u.Email == "" {
			writeError(w, http.StatusBadRequest, "name, password, email, username are required")
			return
		}

		if u.Status == "" {
			u.Status = models.StatusActive
		}
		if !u.IsValidStatus(u.Status) {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		if u.Role == "" {
			u.Role = models.RoleStudent
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "error hashing password")
			return
		}

		u.UserID = uuid.NewString()

		ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()

		query := `
			INSERT INTO users (
				name, password, email, username, user_id,
				program, cohort, status, role
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			RETURNING id
		`

		err = database.Pool().QueryRow(
			ctx,
			query,
			u.Name,
			string(hashed),
			u.Email,
			u.Username,
			u.UserID,
			u.Program,
			u.Cohort,
			u.Status,
			u.Role,
		).Scan(&u.ID)

		if err != nil {
			slog.Error("insert user failed", "error", err)
			writeError(w, http.StatusInternalServerError, "could not insert user")
			return
		}

		u.Password = ""
		writeJSON(w, http.StatusCreated, u)
	}
}

// GetUser returns one user by opaque user id. Admin only.
func GetUser(database *db.Database) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("id")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()

		var u models.User
		query := `
			SELECT id, user_id, name, username, email, program, cohort, status, role
			FROM users WHERE user_id = $1
		`
		err := database.Pool().QueryRow(ctx, query, userID).Scan(
			&u.ID, &u.UserID, &u.Name, &u.Username, &u.Email,
			&u.Program, &u.Cohort, &u.Status, &u.Role,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		} else if err != nil {
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}

		writeJSON(w, http.StatusOK, u)
	}
}
