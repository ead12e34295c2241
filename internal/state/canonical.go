package state

import "FlightSurety/internal/event"

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

func appendString(buf []byte, s string) []byte {
	buf = appendInt64LE(buf, int64(len(s)))
	return append(buf, s...)
}

func appendBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func appendFlightKey(buf []byte, k event.FlightKey) []byte {
	buf = append(buf, k.Airline[:]...)
	buf = appendString(buf, k.Code)
	return appendInt64LE(buf, k.Departure)
}
