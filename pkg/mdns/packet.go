package mdns

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"golang.org/x/net/dns/dnsmessage"
)

// unicastResponseBit is the top bit of the question class. When set, the
// question asks for a unicast reply (a QU question).
const unicastResponseBit = 1 << 15

// Question is one mDNS question.
type Question struct {
	Name string
	Type dnsmessage.Type
}

// Record is one resource record from a response, with the rdata relevant to
// service discovery decoded.
type Record struct {
	Name string
	Type dnsmessage.Type
	TTL  uint32

	PTR    string     // PTR
	Target string     // SRV
	Port   uint16     // SRV
	Text   []byte     // TXT, raw rdata
	Addr   netip.Addr // A and AAAA
}

func (r Record) key() string {
	return normalize(r.Name) + "|" + r.Type.String()
}

func normalize(name string) string {
	name = strings.ToLower(name)
	if !strings.HasSuffix(name, ".") {
		name += "."
	}
	return name
}

// buildQuery encodes a query packet. unicast sets the QU bit on every question.
func buildQuery(questions []Question, unicast bool) ([]byte, error) {
	class := dnsmessage.ClassINET
	if unicast {
		class |= unicastResponseBit
	}

	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{})
	b.EnableCompression()
	if err := b.StartQuestions(); err != nil {
		return nil, err
	}
	for _, q := range questions {
		name, err := dnsmessage.NewName(normalize(q.Name))
		if err != nil {
			return nil, fmt.Errorf("invalid question name %q: %w", q.Name, err)
		}
		if err := b.Question(dnsmessage.Question{Name: name, Type: q.Type, Class: class}); err != nil {
			return nil, err
		}
	}
	return b.Finish()
}

// parseResponse decodes every answer and additional record of a response.
// Queries yield no records.
func parseResponse(buf []byte) ([]Record, error) {
	var p dnsmessage.Parser
	hdr, err := p.Start(buf)
	if err != nil {
		return nil, err
	}
	if !hdr.Response {
		return nil, nil
	}
	if err := p.SkipAllQuestions(); err != nil {
		return nil, err
	}

	var records []Record
	for {
		h, err := p.AnswerHeader()
		if errors.Is(err, dnsmessage.ErrSectionDone) {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, ok, err := parseRecord(&p, h)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}

	if err := p.SkipAllAuthorities(); err != nil {
		return records, nil
	}

	for {
		h, err := p.AdditionalHeader()
		if errors.Is(err, dnsmessage.ErrSectionDone) {
			break
		}
		if err != nil {
			// Answers are already usable.
			return records, nil
		}
		rec, ok, err := parseRecord(&p, h)
		if err != nil {
			return records, nil
		}
		if ok {
			records = append(records, rec)
		}
	}

	return records, nil
}

func parseRecord(p *dnsmessage.Parser, h dnsmessage.ResourceHeader) (Record, bool, error) {
	rec := Record{Name: h.Name.String(), Type: h.Type, TTL: h.TTL}

	switch h.Type {
	case dnsmessage.TypePTR:
		r, err := p.PTRResource()
		if err != nil {
			return rec, false, err
		}
		rec.PTR = r.PTR.String()
	case dnsmessage.TypeSRV:
		r, err := p.SRVResource()
		if err != nil {
			return rec, false, err
		}
		rec.Target = r.Target.String()
		rec.Port = r.Port
	case dnsmessage.TypeTXT:
		// TXT rdata is kept raw so that malformed entries can be reported
		// per advertisement instead of failing the whole packet.
		r, err := p.UnknownResource()
		if err != nil {
			return rec, false, err
		}
		rec.Text = append([]byte{}, r.Data...)
	case dnsmessage.TypeA:
		r, err := p.AResource()
		if err != nil {
			return rec, false, err
		}
		rec.Addr = netip.AddrFrom4(r.A)
	case dnsmessage.TypeAAAA:
		r, err := p.AAAAResource()
		if err != nil {
			return rec, false, err
		}
		rec.Addr = netip.AddrFrom16(r.AAAA)
	default:
		if _, err := p.UnknownResource(); err != nil {
			return rec, false, err
		}
		return rec, false, nil
	}

	return rec, true, nil
}
