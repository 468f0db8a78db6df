package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joao-k-santos/IRS-LLM/internal/auth"
	"github.com/joao-k-santos/IRS-LLM/internal/llm"
	"github.com/joao-k-santos/IRS-LLM/internal/registry"
	"github.com/joao-k-santos/IRS-LLM/internal/types"
)

// RuleGenerator asks the generative service for mitigation rules covering
// every context registered so far, newest first, with the trusted-IP
// allowlist spelled out in the prompt. Single-shot: no multi-turn refinement.
type RuleGenerator struct {
	llm      *llm.Client
	registry *registry.Client
	model    string
	logger   *slog.Logger
}

// NewRuleGenerator creates a rule generator.
func NewRuleGenerator(client *llm.Client, reg *registry.Client, model string, logger *slog.Logger) *RuleGenerator {
	return &RuleGenerator{llm: client, registry: reg, model: model, logger: logger}
}

// Generate returns the extracted mitigation rules. No registered history or
// an unproductive model answer yields an empty slice and no error.
func (g *RuleGenerator) Generate(ctx context.Context, token string) ([]types.Rule, error) {
	if !auth.ValidLocally(token) {
		return nil, types.NewError(types.AUTH_TOKEN_EXPIRED, "bearer for generative service expired or malformed")
	}

	history, err := g.registry.ListContexts(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}

	trusted, err := g.registry.ListTrustedDevices(ctx, token)
	if err != nil {
		return nil, err
	}

	text, err := g.llm.Generate(ctx, g.model, buildRulesPrompt(history, trusted), token)
	if err != nil {
		return nil, err
	}

	raw, ok := llm.Extract(text)
	if !ok {
		g.logger.Warn("model answer carried no extractable rules")
		return nil, nil
	}

	rules, dropped := types.DecodeRules(raw)
	for _, err := range dropped {
		g.logger.Warn("dropped malformed rule", "error", err)
	}
	return rules, nil
}

// buildRulesPrompt renders the mitigation prompt. The wire keys stay in the
// store's schema language (tipo/descricao/comando); the briefing is English.
func buildRulesPrompt(history []types.Context, trusted []string) string {
	var b strings.Builder

	b.WriteString("You are a specialized network cyber-defense system.\n\n")

	b.WriteString("Based on the following detected attacks:\n")
	for _, c := range history {
		fmt.Fprintf(&b, "- Tipo: %s, Descricao: %s, Detalhes: %s\n", c.Tipo, c.Descricao, c.Detalhes)
	}

	b.WriteString("\n### Trusted IPs (these must NEVER be blocked or degraded):\n")
	for _, ip := range trusted {
		fmt.Fprintf(&b, "- %s\n", ip)
	}

	b.WriteString(`
Your task is to generate mitigation rules for these attacks.

### Rule-generation guidelines:
- Address the most severe threats first. Treat as severe:
  - Denial of service (DoS, DDoS)
  - SQL or command injection (SQLi, Command Injection)
  - Remote code execution (RCE)
  - Privilege escalation
- Every iptables blocking rule must be preceded by a matching log rule
  (` + "`-j LOG`" + `). Use ` + "`--log-prefix`" + ` to state the reason (e.g. 'ATTACK BLOCKED: ').
- If you do not know how to mitigate an attack, skip it instead of inventing
  an invalid rule.
- Never block an IP from the trusted list.
- Never produce rules that would lock up the host or sever its connectivity.
- For scan-type threats such as portscans, prefer efficient strategies:
  - Prefer the iptables ` + "`recent`" + ` module to detect repeated attempts over a
    short window and block the source automatically.
  - Avoid one rule per port.
  - Consider ` + "`connlimit`" + ` (simultaneous connections per IP) or ` + "`hashlimit`" + `
    (packet-rate limiting).
  - A good portscan default: log and block IPs attempting more than 10 TCP
    SYN connections in under 60 seconds.
- If no safe rule can be generated, return exactly [].

### Mandatory response format:
- Pure JSON, no comments or prose outside it.
- A list of objects, each with three required fields:
  - "tipo": firewall, ids or ips
  - "descricao": short description of the action
  - "comando": the matching CLI command (may hold several commands joined
    by semicolons)

### Example of a correct response:
[
  {"tipo": "firewall", "descricao": "Blocks SSH brute-force attempts", "comando": "iptables -A INPUT -p tcp --dport 22 -m recent --name sshbrute --set; iptables -A INPUT -p tcp --dport 22 -m recent --name sshbrute --update --seconds 60 --hitcount 5 -j LOG --log-prefix \"SSH BRUTEFORCE: \"; iptables -A INPUT -p tcp --dport 22 -m recent --name sshbrute --update --seconds 60 --hitcount 5 -j DROP"},
  {"tipo": "firewall", "descricao": "Detects and blocks portscans", "comando": "iptables -A INPUT -p tcp --syn -m recent --name portscan --set; iptables -A INPUT -p tcp --syn -m recent --name portscan --update --seconds 60 --hitcount 10 -j LOG --log-prefix \"PORTSCAN DETECTED: \"; iptables -A INPUT -p tcp --syn -m recent --name portscan --update --seconds 60 --hitcount 10 -j DROP"},
  {"tipo": "firewall", "descricao": "Rate-limits connections to mitigate DoS", "comando": "iptables -A INPUT -p tcp --dport 80 -m limit --limit 25/second --limit-burst 100 -j ACCEPT; iptables -A INPUT -p tcp --dport 80 -j LOG --log-prefix \"DOS BLOCKED: \"; iptables -A INPUT -p tcp --dport 80 -j DROP"},
  {"tipo": "ids", "descricao": "Reloads fail2ban to protect against repeated logins", "comando": "fail2ban-client reload sshd"},
  {"tipo": "ips", "descricao": "Kills a suspicious miner process", "comando": "pkill -f miner_script"}
]

Repeat: return only the requested JSON, with no explanation outside it, and
generate as few rules as possible.
`)

	return b.String()
}
