package network

import (
	"encoding/json"

	"github.com/wfunc/footgame/models"
)

// 入站消息类型
const (
	MsgTypeStart = "START"
	MsgTypeMove  = "MOVE"
)

// 出站消息类型
const (
	MsgTypeInfo    = "INFO"
	MsgTypeWarning = "WARNING"
	MsgTypeError   = "ERROR"
	MsgTypeReject  = "REJECT"
	MsgTypeUser    = "USER"
	MsgTypeData    = "DATA"
	MsgTypeEnd     = "END"
)

// Envelope is an outbound control message.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ClientMessage is an inbound control message; Data is decoded by whoever
// handles the message type.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MoveRequest is the payload of a MOVE message.
type MoveRequest struct {
	X    int  `json:"x"`
	Y    int  `json:"y"`
	Bomb bool `json:"bomb"`
}

// RosterData is the payload of a USER broadcast.
type RosterData struct {
	Host  int64         `json:"host"`
	Users []models.User `json:"users"`
}

func Info(text string) *Envelope    { return &Envelope{Type: MsgTypeInfo, Data: text} }
func Warning(text string) *Envelope { return &Envelope{Type: MsgTypeWarning, Data: text} }
func Error(text string) *Envelope   { return &Envelope{Type: MsgTypeError, Data: text} }
func Reject(text string) *Envelope  { return &Envelope{Type: MsgTypeReject, Data: text} }
func End(text string) *Envelope     { return &Envelope{Type: MsgTypeEnd, Data: text} }

func Roster(host int64, users []models.User) *Envelope {
	return &Envelope{Type: MsgTypeUser, Data: RosterData{Host: host, Users: users}}
}

func Data(payload interface{}) *Envelope {
	return &Envelope{Type: MsgTypeData, Data: payload}
}
