package slogx

import "log/slog"

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "")
	}
	return slog.String("err", err.Error())
}

func OwnerID(id string) slog.Attr {
	return slog.String("owner_id", id)
}

func NoteID(id string) slog.Attr {
	return slog.String("note_id", id)
}

func SessionID(id string) slog.Attr {
	return slog.String("session_id", id)
}

func State(s string) slog.Attr {
	return slog.String("state", s)
}
