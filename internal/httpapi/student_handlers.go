package httpapi

import (
	"net/http"
	"strconv"

	"unirecords.org/internal/students"
)

func (a *API) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "student")
	if !ok {
		return
	}
	st, err := a.students.Get(r.Context(), caller, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleListStudents(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := students.Filter{Classification: q.Get("classification")}
	for key, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if raw := q.Get(key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, r, http.StatusBadRequest, "invalid "+key)
				return
			}
			*dst = n
		}
	}
	if raw := q.Get("student_id"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "invalid student_id")
			return
		}
		f.StudentID = n
	}
	list, err := a.students.List(r.Context(), caller, f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list, "count": len(list)})
}
