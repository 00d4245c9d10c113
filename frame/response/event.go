package response

import "github.com/nativecql/coredriver/frame"

// ParseEvent decodes a server-pushed EVENT body (the connection received
// this unsolicited, via REGISTER subscription).
func ParseEvent(b *frame.Buffer) (Event, error) {
	e := Event{Type: b.ReadString(), Details: map[string]string{}}
	switch e.Type {
	case "SCHEMA_CHANGE":
		e.Details["change_type"] = b.ReadString()
		e.Details["target"] = b.ReadString()
		switch e.Details["target"] {
		case "KEYSPACE":
			e.Details["keyspace"] = b.ReadString()
		case "TABLE", "TYPE":
			e.Details["keyspace"] = b.ReadString()
			e.Details["name"] = b.ReadString()
		}
	case "STATUS_CHANGE", "TOPOLOGY_CHANGE":
		e.Details["change_type"] = b.ReadString()
		ip, port := b.ReadInet()
		e.Details["address"] = frame.FormatInet(ip, port)
	}
	return e, b.Err()
}
