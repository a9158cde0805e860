package gamequery

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"net"
)

// A2S packet headers. GoldSource servers answer A2S_INFO with the obsolete
// 0x6D layout; Source servers use 0x49. Both may answer any request with a
// challenge packet (0x41) that must be echoed back.
const (
	headerInfoRequest    = 0x54 // 'T'
	headerInfoSource     = 0x49 // 'I'
	headerInfoGoldSource = 0x6D // 'm'
	headerPlayerRequest  = 0x55 // 'U'
	headerPlayerResponse = 0x44 // 'D'
	headerChallenge      = 0x41 // 'A'
	challengePlaceholder = -1
	maxDatagram          = 1400
)

var infoPayload = append([]byte{0xFF, 0xFF, 0xFF, 0xFF, headerInfoRequest}, "Source Engine Query\x00"...)

type serverInfo struct {
	name       string
	mapName    string
	numPlayers int
	maxPlayers int
}

func queryInfo(conn net.Conn) (*serverInfo, error) {
	resp, err := exchange(conn, infoPayload)
	if err != nil {
		return nil, fmt.Errorf("info query: %w", err)
	}

	r := newPacketReader(resp)
	header, err := r.byte()
	if err != nil {
		return nil, fmt.Errorf("info response: %w", err)
	}

	// Challenge-gated info queries echo the challenge after the base payload.
	if header == headerChallenge {
		challenge, err := r.long()
		if err != nil {
			return nil, fmt.Errorf("info challenge: %w", err)
		}
		req := make([]byte, len(infoPayload), len(infoPayload)+4)
		copy(req, infoPayload)
		req = binary.LittleEndian.AppendUint32(req, uint32(challenge))
		if resp, err = exchange(conn, req); err != nil {
			return nil, fmt.Errorf("info query (challenged): %w", err)
		}
		r = newPacketReader(resp)
		if header, err = r.byte(); err != nil {
			return nil, fmt.Errorf("info response: %w", err)
		}
	}

	switch header {
	case headerInfoSource:
		return parseSourceInfo(r)
	case headerInfoGoldSource:
		return parseGoldSourceInfo(r)
	default:
		return nil, fmt.Errorf("unexpected info header 0x%02x", header)
	}
}

// parseSourceInfo parses the modern 0x49 layout.
func parseSourceInfo(r *packetReader) (*serverInfo, error) {
	if _, err := r.byte(); err != nil { // protocol version
		return nil, err
	}
	name, err := r.cstring()
	if err != nil {
		return nil, err
	}
	mapName, err := r.cstring()
	if err != nil {
		return nil, err
	}
	if _, err := r.cstring(); err != nil { // folder
		return nil, err
	}
	if _, err := r.cstring(); err != nil { // game
		return nil, err
	}
	if _, err := r.short(); err != nil { // app id
		return nil, err
	}
	numPlayers, err := r.byte()
	if err != nil {
		return nil, err
	}
	maxPlayers, err := r.byte()
	if err != nil {
		return nil, err
	}
	return &serverInfo{
		name:       name,
		mapName:    mapName,
		numPlayers: int(numPlayers),
		maxPlayers: int(maxPlayers),
	}, nil
}

// parseGoldSourceInfo parses the obsolete 0x6D layout still spoken by
// HLDS-era servers like CS 1.6.
func parseGoldSourceInfo(r *packetReader) (*serverInfo, error) {
	if _, err := r.cstring(); err != nil { // server address
		return nil, err
	}
	name, err := r.cstring()
	if err != nil {
		return nil, err
	}
	mapName, err := r.cstring()
	if err != nil {
		return nil, err
	}
	if _, err := r.cstring(); err != nil { // folder
		return nil, err
	}
	if _, err := r.cstring(); err != nil { // game
		return nil, err
	}
	numPlayers, err := r.byte()
	if err != nil {
		return nil, err
	}
	maxPlayers, err := r.byte()
	if err != nil {
		return nil, err
	}
	return &serverInfo{
		name:       name,
		mapName:    mapName,
		numPlayers: int(numPlayers),
		maxPlayers: int(maxPlayers),
	}, nil
}

func queryPlayers(conn net.Conn) ([]Player, error) {
	resp, err := exchange(conn, playerRequest(challengePlaceholder))
	if err != nil {
		return nil, fmt.Errorf("player query: %w", err)
	}

	r := newPacketReader(resp)
	header, err := r.byte()
	if err != nil {
		return nil, fmt.Errorf("player response: %w", err)
	}

	if header == headerChallenge {
		challenge, err := r.long()
		if err != nil {
			return nil, fmt.Errorf("player challenge: %w", err)
		}
		if resp, err = exchange(conn, playerRequest(challenge)); err != nil {
			return nil, fmt.Errorf("player query (challenged): %w", err)
		}
		r = newPacketReader(resp)
		if header, err = r.byte(); err != nil {
			return nil, fmt.Errorf("player response: %w", err)
		}
	}

	if header != headerPlayerResponse {
		return nil, fmt.Errorf("unexpected player header 0x%02x", header)
	}

	count, err := r.byte()
	if err != nil {
		return nil, err
	}

	players := make([]Player, 0, count)
	for i := 0; i < int(count); i++ {
		if _, err := r.byte(); err != nil { // chunk index
			return nil, fmt.Errorf("player %d: %w", i, err)
		}
		name, err := r.cstring()
		if err != nil {
			return nil, fmt.Errorf("player %d name: %w", i, err)
		}
		score, err := r.long()
		if err != nil {
			return nil, fmt.Errorf("player %d score: %w", i, err)
		}
		duration, err := r.float()
		if err != nil {
			return nil, fmt.Errorf("player %d duration: %w", i, err)
		}
		players = append(players, Player{
			Name: name,
			Raw: map[string]any{
				"score": int64(score),
				"time":  float64(duration),
			},
		})
	}
	return players, nil
}

func playerRequest(challenge int32) []byte {
	req := []byte{0xFF, 0xFF, 0xFF, 0xFF, headerPlayerRequest}
	return binary.LittleEndian.AppendUint32(req, uint32(challenge))
}

// exchange sends one request datagram and reads one response datagram.
func exchange(conn net.Conn, req []byte) ([]byte, error) {
	if _, err := conn.Write(req); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	buf := make([]byte, maxDatagram)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	resp := buf[:n]
	if len(resp) < 5 || !bytes.Equal(resp[:4], []byte{0xFF, 0xFF, 0xFF, 0xFF}) {
		return nil, fmt.Errorf("malformed response (%d bytes)", n)
	}
	return resp[4:], nil
}

// packetReader walks an A2S response payload.
type packetReader struct {
	data []byte
	pos  int
}

func newPacketReader(data []byte) *packetReader {
	return &packetReader{data: data}
}

func (r *packetReader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("truncated packet at offset %d", r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *packetReader) short() (int16, error) {
	if r.pos+2 > len(r.data) {
		return 0, fmt.Errorf("truncated packet at offset %d", r.pos)
	}
	v := int16(binary.LittleEndian.Uint16(r.data[r.pos:]))
	r.pos += 2
	return v, nil
}

func (r *packetReader) long() (int32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("truncated packet at offset %d", r.pos)
	}
	v := int32(binary.LittleEndian.Uint32(r.data[r.pos:]))
	r.pos += 4
	return v, nil
}

func (r *packetReader) float() (float32, error) {
	v, err := r.long()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

func (r *packetReader) cstring() (string, error) {
	end := bytes.IndexByte(r.data[r.pos:], 0)
	if end < 0 {
		return "", fmt.Errorf("unterminated string at offset %d", r.pos)
	}
	s := string(r.data[r.pos : r.pos+end])
	r.pos += end + 1
	return s, nil
}
