package intake

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc extrai a identidade do visitante (a chave do rate limit) da requisição
// quando o corpo não traz visitorId, ou quando Options.IgnoreBodyVisitorID está ligado.
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc resolve o visitante do funil, nesta ordem:
//   - keyHeader (ex.: X-Visitor-Id, o id anônimo gerado pela interface);
//   - o primeiro IP do X-Forwarded-For, só se o gateway está atrás de um proxy confiável;
//   - o host do RemoteAddr;
//   - "unknown", que faz todos os visitantes sem identidade dividirem uma janela.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}
