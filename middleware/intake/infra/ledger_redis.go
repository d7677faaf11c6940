package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/domain"

	"github.com/redis/go-redis/v9"
)

// admitScript faz o read-modify-write do portão em uma única operação no servidor.
//
// KEYS[1] = chave do visitante
// ARGV[1] = now (epoch ms), ARGV[2] = janela (ms), ARGV[3] = ttl (ms, 0 = sem expiração)
// Retorna {admitido(0|1), last(epoch ms)}.
var admitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local last = redis.call('GET', KEYS[1])
if last then
  last = tonumber(last)
  if now - last < window then
    return {0, last}
  end
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return {1, now}
`)

// RedisLedger compartilha o ledger entre várias instâncias do gateway.
//
// O instante usado é o do processo chamador (Clock do RateLimiter), não o TIME do
// Redis; as instâncias precisam de relógios razoavelmente sincronizados.
type RedisLedger struct {
	rdb    *redis.Client
	prefix string
	// ttl é opt-in (padrão 0 = nunca expira), mesma ressalva do MemoryLedger.
	ttl time.Duration
}

type RedisLedgerOption func(*RedisLedger)

func WithLedgerPrefix(prefix string) RedisLedgerOption {
	return func(l *RedisLedger) { l.prefix = strings.Trim(prefix, ":") }
}

func WithLedgerTTL(d time.Duration) RedisLedgerOption {
	return func(l *RedisLedger) { l.ttl = d }
}

func NewRedisLedger(rdb *redis.Client, opts ...RedisLedgerOption) *RedisLedger {
	l := &RedisLedger{
		rdb:    rdb,
		prefix: "intake:ratelimit",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLedger) key(k domain.Key) string {
	return l.prefix + ":" + string(k)
}

// Admit implementa domain.Ledger.
func (l *RedisLedger) Admit(ctx context.Context, key domain.Key, now time.Time, window time.Duration) (domain.Admission, error) {
	res, err := admitScript.Run(ctx, l.rdb, []string{l.key(key)},
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(window.Milliseconds(), 10),
		strconv.FormatInt(l.ttl.Milliseconds(), 10),
	).Int64Slice()
	if err != nil {
		return domain.Admission{}, fmt.Errorf("redis ledger admit: %w", err)
	}
	if len(res) != 2 {
		return domain.Admission{}, fmt.Errorf("redis ledger admit: unexpected reply %v", res)
	}

	return domain.Admission{
		Admitted: res[0] == 1,
		Last:     time.UnixMilli(res[1]),
	}, nil
}
