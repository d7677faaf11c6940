package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Orquestrador falso: responde como o serviço de IA para testar o gateway localmente.
// FAKE_DELAY (ex.: "3s") simula a demora da geração e ajuda a observar CONCURRENCY_MAX.

type problemIn struct {
	Problem string `json:"problem"`
	Domain  string `json:"domain"`
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	delay, _ := time.ParseDuration(os.Getenv("FAKE_DELAY"))

	r := mux.NewRouter()
	r.HandleFunc("/api/problems", func(w http.ResponseWriter, req *http.Request) {
		var in problemIn
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			http.Error(w, "json inválido", http.StatusBadRequest)
			return
		}
		time.Sleep(delay)

		log.Info().
			Str("visitor", req.Header.Get("X-Visitor-Id")).
			Str("submission", req.Header.Get("X-Submission-Id")).
			Int("chars", len([]rune(in.Problem))).
			Msg("problema recebido")

		questions := make([]map[string]string, 0, 3)
		for i := 1; i <= 3; i++ {
			questions = append(questions, map[string]string{
				"id":       uuid.NewString(),
				"question": "Pergunta de aprofundamento " + strconv.Itoa(i) + "?",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"problemId": uuid.NewString(),
			"domain":    in.Domain,
			"questions": questions,
		})
	}).Methods(http.MethodPost)

	r.HandleFunc("/api/problems/analyze", func(w http.ResponseWriter, req *http.Request) {
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"analysisId": uuid.NewString(),
			"complexity": "medium",
		})
	}).Methods(http.MethodPost)

	r.HandleFunc("/api/blueprints/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["id"]
		log.Info().Str("blueprint", id).Msg("blueprint consultado")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "status": "draft"})
	}).Methods(http.MethodGet)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	log.Info().Str("addr", addr).Msg("orquestrador fake rodando")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("erro ao subir o servidor")
	}
}
