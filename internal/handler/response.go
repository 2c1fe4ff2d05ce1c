package handler

import (
	"net/http"
	"time"

	"github.com/taskdeck/server-go/internal/httputil"
	"github.com/taskdeck/server-go/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

func formatAccount(account *model.Account) map[string]any {
	return map[string]any{
		"id":        account.ID,
		"email":     account.Email,
		"createdAt": account.CreatedAt.Format(time.RFC3339),
	}
}
