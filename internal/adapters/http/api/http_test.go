package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/couplepet/internal/adapters/http/api"
	"github.com/okian/couplepet/internal/adapters/repository"
	service "github.com/okian/couplepet/internal/app"
	"github.com/okian/couplepet/internal/domain/petstate"
	"github.com/okian/couplepet/internal/domain/types"
	"github.com/okian/couplepet/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// stubDeps fails every operation with err.
type stubDeps struct {
	err  error
	mu   sync.Mutex
	seen map[string]bool
}

func (s *stubDeps) SeenAndRecord(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if s.seen[key] {
		return true
	}
	s.seen[key] = true
	return false
}

func (s *stubDeps) Unrecord(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, key)
}

func (s *stubDeps) Get(context.Context) (petstate.PetState, error) { return petstate.PetState{}, s.err }
func (s *stubDeps) UpdateProfile(context.Context, petstate.Profile) (petstate.PetState, error) {
	return petstate.PetState{}, s.err
}
func (s *stubDeps) Act(context.Context, petstate.Partner, string, bool) (petstate.PetState, error) {
	return petstate.PetState{}, s.err
}
func (s *stubDeps) CoupleActivity(context.Context, string) (petstate.PetState, error) {
	return petstate.PetState{}, s.err
}
func (s *stubDeps) Reset(context.Context) (petstate.PetState, error) {
	return petstate.PetState{}, s.err
}
func (s *stubDeps) History(context.Context, int) ([]types.HistoryEntry, error) {
	return nil, s.err
}
func (s *stubDeps) GetStats(context.Context) types.Stats { return types.Stats{} }

// newLiveMux serves the API over a started in-memory service.
func newLiveMux() (http.Handler, func()) {
	svc := service.New(
		service.WithClock(func() time.Time { return t0 }),
		service.WithLogger(logger.NewNop()),
	)
	So(svc.Start(context.Background()), ShouldBeNil)

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	return api.RequestIDMiddleware(mux), func() { _ = svc.Stop(context.Background()) }
}

func do(h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestPetRoutes(t *testing.T) {
	Convey("Given the API over a live service", t, func() {
		h, stop := newLiveMux()
		defer stop()

		Convey("When the pet is fetched", func() {
			w := do(h, http.MethodGet, "/api/pet", "")

			Convey("Then the default record is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				So(w.Header().Get(api.HeaderRequestID), ShouldNotBeEmpty)
				body := decode(w)
				So(body["name"], ShouldEqual, "Fluffy")
				So(body["species"], ShouldEqual, "Floof")
				So(body["partner1_last_action"], ShouldBeNil)
				So(body["last_updated"], ShouldEqual, "2024-03-01T09:00:00.000000Z")
			})
		})

		Convey("When the profile is updated", func() {
			w := do(h, http.MethodPost, "/api/pet", `{"name":"Mochi","partner2_name":"Sam"}`)

			Convey("Then only the given fields change", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["name"], ShouldEqual, "Mochi")
				So(body["species"], ShouldEqual, "Floof")
				So(body["partner2_name"], ShouldEqual, "Sam")
			})
		})

		Convey("When the profile body is not JSON", func() {
			w := do(h, http.MethodPost, "/api/pet", `{"name":`)

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When an unsupported method is used", func() {
			w := do(h, http.MethodDelete, "/api/pet", "")

			Convey("Then 405 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldEqual, "GET, POST")
				body := decode(w)
				So(body["code"], ShouldEqual, "method_not_allowed")
				So(body["message"], ShouldEqual, "api.pet: method not allowed")
			})
		})

		Convey("When the client sends its own request id", func() {
			w := do(h, http.MethodGet, "/api/pet", "", api.HeaderRequestID, "trace-123")

			Convey("Then it is echoed", func() {
				So(w.Header().Get(api.HeaderRequestID), ShouldEqual, "trace-123")
			})
		})
	})
}

func TestActionRoute(t *testing.T) {
	Convey("Given the API over a live service", t, func() {
		h, stop := newLiveMux()
		defer stop()

		Convey("When partner1 feeds the pet", func() {
			w := do(h, http.MethodPost, "/api/action", `{"partner":"partner1","action":"feed"}`)

			Convey("Then the updated record is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["hunger"], ShouldEqual, 70)
				So(body["happiness"], ShouldEqual, 55)
				So(body["partner1_streak"], ShouldEqual, 1)
				history := body["action_history"].([]any)
				So(history, ShouldHaveLength, 1)
			})
		})

		Convey("When the couple flag is set", func() {
			w := do(h, http.MethodPost, "/api/action", `{"partner":"partner2","action":"cuddle","couple_activity":true}`)

			Convey("Then the couple bonus applies", func() {
				body := decode(w)
				So(body["happiness"], ShouldEqual, 75)
				So(body["health"], ShouldEqual, 55)
				So(body["couple_activities_completed"], ShouldEqual, 1)
			})
		})

		Convey("When the same Idempotency-Key is sent twice", func() {
			first := do(h, http.MethodPost, "/api/action", `{"partner":"partner1","action":"play"}`, api.HeaderIdempotencyKey, "k1")
			second := do(h, http.MethodPost, "/api/action", `{"partner":"partner1","action":"play"}`, api.HeaderIdempotencyKey, "k1")

			Convey("Then the action is applied once", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(first.Header().Get(api.HeaderIdempotentReplay), ShouldEqual, "")
				So(second.Code, ShouldEqual, http.StatusOK)
				So(second.Header().Get(api.HeaderIdempotentReplay), ShouldEqual, "true")
				So(decode(second)["action_history"], ShouldHaveLength, 1)
				So(decode(second)["happiness"], ShouldEqual, decode(first)["happiness"])
			})
		})

		Convey("When the partner is unknown", func() {
			w := do(h, http.MethodPost, "/api/action", `{"partner":"partner3","action":"feed"}`, api.HeaderIdempotencyKey, "k2")

			Convey("Then invalid_partner is returned and the key is released", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, "invalid_partner")

				retry := do(h, http.MethodPost, "/api/action", `{"partner":"partner1","action":"feed"}`, api.HeaderIdempotencyKey, "k2")
				So(retry.Header().Get(api.HeaderIdempotentReplay), ShouldEqual, "")
				So(decode(retry)["hunger"], ShouldEqual, 70)
			})
		})

		Convey("When required fields are missing", func() {
			noPartner := do(h, http.MethodPost, "/api/action", `{"action":"feed"}`)
			noAction := do(h, http.MethodPost, "/api/action", `{"partner":"partner1"}`)
			empty := do(h, http.MethodPost, "/api/action", "")

			Convey("Then each is a bad request", func() {
				So(noPartner.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(noPartner)["message"], ShouldContainSubstring, "missing partner")
				So(noAction.Code, ShouldEqual, http.StatusBadRequest)
				So(empty.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When an unknown action is sent", func() {
			w := do(h, http.MethodPost, "/api/action", `{"partner":"partner2","action":"dance"}`)

			Convey("Then it is recorded without vital changes", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["happiness"], ShouldEqual, 50)
				So(body["partner2_streak"], ShouldEqual, 1)
			})
		})

		Convey("When GET is used", func() {
			w := do(h, http.MethodGet, "/api/action", "")

			Convey("Then 404 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestCoupleResetAndHistoryRoutes(t *testing.T) {
	Convey("Given the API over a live service", t, func() {
		h, stop := newLiveMux()
		defer stop()

		Convey("When a joint groom is done", func() {
			w := do(h, http.MethodPost, "/api/couple-activity", `{"activity":"groom"}`)

			Convey("Then happiness, health and cleanliness rise", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["happiness"], ShouldEqual, 80)
				So(body["health"], ShouldEqual, 65)
				So(body["cleanliness"], ShouldEqual, 80)
			})
		})

		Convey("When the activity is missing", func() {
			w := do(h, http.MethodPost, "/api/couple-activity", `{}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a joint activity is retried with the same key", func() {
			do(h, http.MethodPost, "/api/couple-activity", `{"activity":"walk"}`, api.HeaderIdempotencyKey, "c1")
			w := do(h, http.MethodPost, "/api/couple-activity", `{"activity":"walk"}`, api.HeaderIdempotencyKey, "c1")

			Convey("Then it counts once", func() {
				So(w.Header().Get(api.HeaderIdempotentReplay), ShouldEqual, "true")
				So(decode(w)["couple_activities_completed"], ShouldEqual, 1)
			})
		})

		Convey("When the pet is reset after some care", func() {
			do(h, http.MethodPost, "/api/pet", `{"partner1_name":"Alex"}`)
			do(h, http.MethodPost, "/api/action", `{"partner":"partner1","action":"treat"}`)
			w := do(h, http.MethodPost, "/api/reset", "")

			Convey("Then it is fresh but keeps partner names", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["hunger"], ShouldEqual, 50)
				So(body["partner1_name"], ShouldEqual, "Alex")
				So(body["action_history"], ShouldBeEmpty)
			})
		})

		Convey("When a reset is retried with the same key", func() {
			do(h, http.MethodPost, "/api/reset", "", api.HeaderIdempotencyKey, "r1")
			do(h, http.MethodPost, "/api/action", `{"partner":"partner1","action":"feed"}`)
			w := do(h, http.MethodPost, "/api/reset", "", api.HeaderIdempotencyKey, "r1")

			Convey("Then the later care survives", func() {
				So(w.Header().Get(api.HeaderIdempotentReplay), ShouldEqual, "true")
				So(decode(w)["hunger"], ShouldEqual, 70)
			})
		})

		Convey("When the history is listed", func() {
			do(h, http.MethodPost, "/api/action", `{"partner":"partner1","action":"feed"}`)
			do(h, http.MethodPost, "/api/action", `{"partner":"partner2","action":"clean"}`)
			do(h, http.MethodPost, "/api/couple-activity", `{"activity":"train"}`)

			all := do(h, http.MethodGet, "/api/history", "")
			one := do(h, http.MethodGet, "/api/history?limit=1", "")
			bad := do(h, http.MethodGet, "/api/history?limit=zero", "")

			Convey("Then entries are newest first", func() {
				So(all.Code, ShouldEqual, http.StatusOK)
				body := decode(all)
				So(body["count"], ShouldEqual, 3)
				first := body["history"].([]any)[0].(map[string]any)
				So(first["action"], ShouldEqual, "couple_train")
				last := body["history"].([]any)[2].(map[string]any)
				So(last["partner_name"], ShouldEqual, "Partner 1")

				So(decode(one)["count"], ShouldEqual, 1)
				So(bad.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(bad)["code"], ShouldEqual, "invalid_limit")
			})
		})

		Convey("When health and stats are probed", func() {
			health := do(h, http.MethodGet, "/healthz", "")
			do(h, http.MethodGet, "/api/pet", "")
			stats := do(h, http.MethodGet, "/stats", "")
			metrics := do(h, http.MethodGet, "/metrics", "")

			Convey("Then they answer", func() {
				So(health.Code, ShouldEqual, http.StatusOK)
				So(decode(health)["status"], ShouldEqual, "ok")
				So(stats.Code, ShouldEqual, http.StatusOK)
				So(decode(stats)["started"], ShouldEqual, true)
				So(decode(stats)["store_driver"], ShouldEqual, "memory")
				So(metrics.Code, ShouldEqual, http.StatusOK)
				So(metrics.Body.String(), ShouldContainSubstring, "couplepet_pet_http_requests_total")
			})
		})
	})
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		code     string
		released bool
	}{
		{"full queue", service.ErrQueueFull, http.StatusTooManyRequests, "backpressure", true},
		{"stopped service", service.ErrStopped, http.StatusServiceUnavailable, "unavailable", true},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, "timeout", true},
		{"store failure", errors.New("disk on fire"), http.StatusInternalServerError, "internal", true},
		{"deadline after queueing", errors.Join(service.ErrPending, context.DeadlineExceeded), http.StatusServiceUnavailable, "timeout", false},
	}

	Convey("Given handlers whose service fails", t, func() {
		for _, tc := range cases {
			tc := tc
			deps := &stubDeps{err: tc.err}
			mux := http.NewServeMux()
			api.NewServer(deps, deps).Register(context.Background(), mux)

			w := do(mux, http.MethodPost, "/api/action", `{"partner":"partner1","action":"feed"}`, api.HeaderIdempotencyKey, "k")

			Convey("When the failure is a "+tc.name, func() {
				So(w.Code, ShouldEqual, tc.status)
				So(decode(w)["code"], ShouldEqual, tc.code)
				So(decode(w)["message"], ShouldNotContainSubstring, "disk on fire")
			})

			Convey("And the idempotency key after a "+tc.name+" is kept only while the action may still apply", func() {
				So(deps.SeenAndRecord(context.Background(), "action:k"), ShouldEqual, !tc.released)
			})
		}
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given a wrapped error", t, func() {
		cause := errors.New("missing partner")
		err := api.WrapKind("api.post_action", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause match", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.post_action: missing partner")
		})

		Convey("And a bare kind renders its own message", func() {
			bare := api.NewKind("api.post_action", api.ErrBackpressure)
			So(errors.Is(bare, api.ErrBackpressure), ShouldBeTrue)
			So(bare.Error(), ShouldEqual, "api.post_action: backpressure")
		})
	})
}

func TestRequestIDLogging(t *testing.T) {
	Convey("Given JSON debug logging and a handler that logs", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithFormat(logger.FormatJSON), logger.WithOutput(&buf)), ShouldBeNil)
		So(logger.SetLevelString("debug"), ShouldBeNil)
		Reset(func() { _ = logger.Init(logger.WithOutput(io.Discard)) })

		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Get().Info(r.Context(), "inside handler")
			w.WriteHeader(http.StatusNoContent)
		})
		h := api.RequestIDMiddleware(inner)

		Convey("When a request carries an X-Request-ID", func() {
			w := do(h, http.MethodGet, "/anything", "", "X-Request-ID", "req-42")

			Convey("Then every line logged for it carries the id", func() {
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(w.Header().Get("X-Request-ID"), ShouldEqual, "req-42")
				So(buf.String(), ShouldContainSubstring, "inside handler")
				So(buf.String(), ShouldContainSubstring, "request handled")
				So(strings.Count(buf.String(), `"request_id":"req-42"`), ShouldEqual, 2)
			})
		})
	})
}

// slowStore delays every load so requests can outlive their deadline while
// their mutation is still queued.
type slowStore struct {
	*repository.MemoryStore
	delay time.Duration
}

func (s *slowStore) Load(ctx context.Context) (petstate.PetState, error) {
	time.Sleep(s.delay)
	return s.MemoryStore.Load(ctx)
}

func TestIdempotencyWithSlowWriter(t *testing.T) {
	Convey("Given a service whose store is slow", t, func() {
		svc := service.New(
			service.WithClock(func() time.Time { return t0 }),
			service.WithLogger(logger.NewNop()),
			service.WithStore(&slowStore{MemoryStore: repository.NewMemoryStore(), delay: 100 * time.Millisecond}, "slow"),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		Reset(func() { _ = svc.Stop(context.Background()) })

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(context.Background(), mux)
		const body = `{"partner":"partner1","action":"feed"}`

		Convey("When the first attempt times out after its action was queued", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			req := httptest.NewRequest(http.MethodPost, "/api/action", strings.NewReader(body)).WithContext(ctx)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(api.HeaderIdempotencyKey, "k1")
			first := httptest.NewRecorder()
			mux.ServeHTTP(first, req)

			retry := do(mux, http.MethodPost, "/api/action", body, api.HeaderIdempotencyKey, "k1")

			Convey("Then the retry replays the applied action instead of acting again", func() {
				So(first.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decode(first)["code"], ShouldEqual, "timeout")

				So(retry.Code, ShouldEqual, http.StatusOK)
				So(retry.Header().Get(api.HeaderIdempotentReplay), ShouldEqual, "true")
				pet := decode(retry)
				So(pet["action_history"], ShouldHaveLength, 1)
				So(pet["partner1_streak"], ShouldEqual, 1)
				So(pet["hunger"], ShouldEqual, 70)
			})
		})

		Convey("When two requests with the same key arrive together", func() {
			var wg sync.WaitGroup
			replies := make([]*httptest.ResponseRecorder, 2)
			for i := range replies {
				i := i
				wg.Add(1)
				go func() {
					defer wg.Done()
					replies[i] = do(mux, http.MethodPost, "/api/action", body, api.HeaderIdempotencyKey, "k2")
				}()
			}
			wg.Wait()

			Convey("Then one applies, the other waits and replays the result", func() {
				replayed := 0
				for _, w := range replies {
					So(w.Code, ShouldEqual, http.StatusOK)
					So(decode(w)["action_history"], ShouldHaveLength, 1)
					if w.Header().Get(api.HeaderIdempotentReplay) == "true" {
						replayed++
					}
				}
				So(replayed, ShouldEqual, 1)
			})
		})
	})
}
