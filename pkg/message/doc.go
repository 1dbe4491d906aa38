// Package message defines the envelope exchanged between nodes and the
// payload kinds understood by this repository. An envelope travels as one
// JSON object per line:
//
//	{"src":"n1","dest":"n2","body":{"type":"broadcast","msg_id":3,"message":7}}
//
// The body carries the payload fields flattened next to the correlation
// fields (type, msg_id, in_reply_to).
package message
