// Package sessionlog ships a fire-and-forget summary of each completed
// request to the session logging collaborator. Its failure never affects
// a response that has already been delivered.
package sessionlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const summaryList = "kb:session_summaries"

// Summary is the retrieval metadata recorded per completed request.
type Summary struct {
	RequestID string    `json:"requestId"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Route     string    `json:"route"`
	HitCount  int       `json:"hitCount"`
	TopScore  float64   `json:"topScore"`
	RuntimeMs int64     `json:"runtimeMs"`
	CreatedAt time.Time `json:"createdAt"`
}

type Sink interface {
	Record(summary Summary)
}

type RedisSink struct {
	client *redis.Client
}

func Connect(ctx context.Context, addr, password string, maxRetries int) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	var err error
	for i := range maxRetries {
		if i > 0 {
			backoff := time.Duration(1<<uint(i)) * time.Second
			log.Info().Dur("backoff", backoff).Msg("Waiting before Redis retry")
			time.Sleep(backoff)
		}

		if err = client.Ping(ctx).Err(); err == nil {
			log.Info().Int("attempts_needed", i+1).Msg("Redis connected")
			return &RedisSink{client: client}, nil
		}

		log.Warn().Err(err).Int("attempt", i+1).Msg("Redis ping failed")
	}

	return nil, err
}

// Record pushes the summary in the background. The response has already
// been delivered when this runs, so errors are only logged.
func (s *RedisSink) Record(summary Summary) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		payload, err := json.Marshal(summary)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to marshal session summary")
			return
		}

		if err := s.client.LPush(ctx, summaryList, payload).Err(); err != nil {
			log.Warn().Err(err).Str("request_id", summary.RequestID).Msg("Failed to record session summary")
		}
	}()
}

// NopSink is used when no session logging backend is configured.
type NopSink struct{}

func (NopSink) Record(Summary) {}
