package ratelimit

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const peekLimit = 64 << 10

// CourierKey keys courier actions by courier id.
// The id comes from the {id} URL param on courier routes or from "courier_id" in the JSON body.
// The body is restored for the next handler. Requests without a courier fall back to IPKey.
func CourierKey(param string) KeyFunc {
	return func(r *http.Request) string {
		if param != "" {
			if id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64); err == nil && id > 0 {
				return courierKey(id)
			}
		}
		if id := peekCourierID(r); id > 0 {
			return courierKey(id)
		}
		return IPKey(r)
	}
}

func courierKey(id int64) string {
	return "courier:" + strconv.FormatInt(id, 10)
}

func peekCourierID(r *http.Request) int64 {
	if r.Body == nil || r.Body == http.NoBody {
		return 0
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, peekLimit))
	rest := r.Body
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), rest), rest}
	if err != nil {
		return 0
	}

	var body struct {
		CourierID int64 `json:"courier_id"`
	}
	if json.Unmarshal(buf, &body) != nil {
		return 0
	}
	return body.CourierID
}
