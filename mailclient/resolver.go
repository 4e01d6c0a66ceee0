package mailclient

import (
	"net"
	"strconv"
	"strings"

	"mailpeek/utils"
)

const imapsPort = 993

// ServerCandidate is one endpoint to try for a domain. Candidates are
// ordered; the session layer tries them first to last.
type ServerCandidate struct {
	Host   string
	Port   int
	UseTLS bool
}

// Addr returns host:port for dialing.
func (c ServerCandidate) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// knownServers maps curated provider domains to their verified IMAP
// endpoint. Domains absent here go through the heuristic in Resolve.
var knownServers = map[string]ServerCandidate{
	"gmail.com":       {Host: "imap.gmail.com", Port: imapsPort, UseTLS: true},
	"googlemail.com":  {Host: "imap.gmail.com", Port: imapsPort, UseTLS: true},
	"outlook.com":     {Host: "outlook.office365.com", Port: imapsPort, UseTLS: true},
	"hotmail.com":     {Host: "outlook.office365.com", Port: imapsPort, UseTLS: true},
	"live.com":        {Host: "outlook.office365.com", Port: imapsPort, UseTLS: true},
	"msn.com":         {Host: "outlook.office365.com", Port: imapsPort, UseTLS: true},
	"yahoo.com":       {Host: "imap.mail.yahoo.com", Port: imapsPort, UseTLS: true},
	"icloud.com":      {Host: "imap.mail.me.com", Port: imapsPort, UseTLS: true},
	"me.com":          {Host: "imap.mail.me.com", Port: imapsPort, UseTLS: true},
	"mac.com":         {Host: "imap.mail.me.com", Port: imapsPort, UseTLS: true},
	"yandex.ru":       {Host: "imap.yandex.ru", Port: imapsPort, UseTLS: true},
	"yandex.com":      {Host: "imap.yandex.com", Port: imapsPort, UseTLS: true},
	"mail.ru":         {Host: "imap.mail.ru", Port: imapsPort, UseTLS: true},
	"inbox.ru":        {Host: "imap.mail.ru", Port: imapsPort, UseTLS: true},
	"list.ru":         {Host: "imap.mail.ru", Port: imapsPort, UseTLS: true},
	"bk.ru":           {Host: "imap.mail.ru", Port: imapsPort, UseTLS: true},
	"rambler.ru":      {Host: "imap.rambler.ru", Port: imapsPort, UseTLS: true},
	"aol.com":         {Host: "imap.aol.com", Port: imapsPort, UseTLS: true},
	"gmx.com":         {Host: "imap.gmx.com", Port: imapsPort, UseTLS: true},
	"gmx.net":         {Host: "imap.gmx.net", Port: imapsPort, UseTLS: true},
	"zoho.com":        {Host: "imap.zoho.com", Port: imapsPort, UseTLS: true},
	"firstmail.ltd":   {Host: "imap.firstmail.ltd", Port: imapsPort, UseTLS: true},
	"notletters.com":  {Host: "imap.notletters.com", Port: imapsPort, UseTLS: true},
}

// fallbackCandidates are the providers known to host mailboxes for
// third-party domains. They terminate every unknown-domain candidate list.
var fallbackCandidates = []ServerCandidate{
	{Host: "imap.firstmail.ltd", Port: imapsPort, UseTLS: true},
	{Host: "imap.notletters.com", Port: imapsPort, UseTLS: true},
}

// Resolver turns an address domain into an ordered candidate list. It is
// built once at startup and read-only afterwards.
type Resolver struct {
	table map[string]ServerCandidate
}

// NewResolver merges extra config entries (domain -> "host:port") over the
// curated table. Malformed entries are skipped with a warning.
func NewResolver(extra map[string]string) *Resolver {
	table := make(map[string]ServerCandidate, len(knownServers)+len(extra))
	for domain, cand := range knownServers {
		table[domain] = cand
	}
	for domain, addr := range extra {
		cand, err := parseCandidate(addr)
		if err != nil {
			utils.Log.WithField("domain", domain).WithError(err).Warn("Ignoring malformed resolver entry")
			continue
		}
		table[strings.ToLower(strings.TrimSpace(domain))] = cand
	}
	return &Resolver{table: table}
}

// Resolve maps a domain to candidates. It never fails and never returns an
// empty list: unknown domains get the imap.<domain> guess followed by the
// fixed fallback hosts.
func (r *Resolver) Resolve(domain string) []ServerCandidate {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if cand, ok := r.table[domain]; ok {
		return []ServerCandidate{cand}
	}
	cands := make([]ServerCandidate, 0, len(fallbackCandidates)+1)
	if domain != "" {
		cands = append(cands, ServerCandidate{Host: "imap." + domain, Port: imapsPort, UseTLS: true})
	}
	return append(cands, fallbackCandidates...)
}

func parseCandidate(addr string) (ServerCandidate, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return ServerCandidate{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return ServerCandidate{}, err
	}
	return ServerCandidate{Host: host, Port: port, UseTLS: true}, nil
}
