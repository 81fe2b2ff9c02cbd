package httpx

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/ariefcatur/exam-vouchers/internal/apperr"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code string `json:"code"`
	En   string `json:"en"`
	Ar   string `json:"ar"`
}

var statusOf = map[apperr.Kind]int{
	apperr.KindValidation: http.StatusBadRequest,
	apperr.KindNotFound:   http.StatusNotFound,
	apperr.KindConflict:   http.StatusConflict,
	apperr.KindState:      http.StatusConflict,
	apperr.KindUpstream:   http.StatusBadGateway,
}

// writeError renders err as {"error":{code,en,ar}}. Errors outside the
// taxonomy are logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	code, known := statusOf[apperr.KindOf(err)]
	if !ok || !known {
		log.Printf("http: internal error method=%s path=%s err=%v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, map[string]errorBody{"error": {
			Code: "INTERNAL", En: "Something went wrong, please try again", Ar: "حدث خطأ ما، يرجى المحاولة مرة أخرى",
		}})
		return
	}
	if code == http.StatusBadGateway {
		log.Printf("http: upstream error method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, code, map[string]errorBody{"error": {Code: e.Code, En: e.Msg.En, Ar: e.Msg.Ar}})
}

func badRequest(w http.ResponseWriter, code, en, ar string) {
	writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Code: code, En: en, Ar: ar}})
}
