// Command duoauth-loadtest measures code-vault and session throughput
// against a real or in-process Redis.
//
// It runs three phases: issue (seed one verification code per account),
// consume (atomic single-use consumption under concurrency), and validate
// (session token verification, pure CPU). Point it at a production-like
// Redis with -redis-addr to measure network-bound behavior; without it a
// miniredis runs in-process.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/venaticus/duoauth/internal"
	"github.com/venaticus/duoauth/internal/stores"
	"github.com/venaticus/duoauth/jwt"
)

type codeState struct {
	userID string
	code   string
}

func main() {
	var (
		accounts    = flag.Int("accounts", 100000, "number of accounts to seed codes for")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations in the validate phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "vc", "vault key prefix")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{mr.Addr()},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	vault := stores.NewCodeVault(client, *prefix, time.Hour)

	states := make([]codeState, *accounts)
	fmt.Printf("issuing %d codes...\n", *accounts)
	startIssue := time.Now()
	for i := 0; i < *accounts; i++ {
		code, err := internal.NewCode(6)
		if err != nil {
			fmt.Fprintf(os.Stderr, "code generation failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = codeState{userID: fmt.Sprintf("user-%d", i), code: code}
		if err := vault.Issue(ctx, states[i].userID, internal.HashCode(code), time.Now(), time.Hour); err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("issued in %s\n", time.Since(startIssue).Round(time.Millisecond))

	consumeStats := runConsumePhase(ctx, vault, states, *concurrency)
	validateStats := runValidatePhase(*ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("consume", consumeStats)
	printStats("validate", validateStats)
}

// runConsumePhase consumes every issued code exactly once across the worker
// pool. Failures indicate broken single-use semantics, not load.
func runConsumePhase(ctx context.Context, vault *stores.CodeVault, states []codeState, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, len(states))
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(states) {
					return
				}
				t0 := time.Now()
				_, err := vault.Consume(ctx, states[i].userID, internal.HashCode(states[i].code))
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func runValidatePhase(ops, concurrency int) phaseStats {
	manager, err := jwt.NewManager(jwt.Config{
		Secret:     []byte("loadtest-secret-loadtest-secret!"),
		SessionTTL: time.Hour,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "jwt manager failed: %v\n", err)
		os.Exit(1)
	}

	tokens := make([]string, 1024)
	for i := range tokens {
		session, err := manager.Create(fmt.Sprintf("user-%d", i))
		if err != nil {
			fmt.Fprintf(os.Stderr, "session creation failed: %v\n", err)
			os.Exit(1)
		}
		tokens[i] = session.Token
	}

	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				claims := manager.Validate(tokens[r.Intn(len(tokens))])
				d := time.Since(t0)
				if claims == nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
