package http

import (
	"fmt"

	"github.com/vovakirdan/netchat-server/internal/core"
	"github.com/vovakirdan/netchat-server/internal/proto"
)

func inboundToCommand(in proto.Inbound) (core.Command, error) {
	switch in.Command {
	case proto.CommandDelete:
		messageID, err := requireID(in.Command, "message_id", in.MessageID)
		if err != nil {
			return core.Command{}, err
		}
		return core.Command{Kind: core.CommandDelete, MessageID: messageID}, nil

	case proto.CommandTyping:
		userID, err := requireID(in.Command, "user_id", in.UserID)
		if err != nil {
			return core.Command{}, err
		}
		return core.Command{Kind: core.CommandTyping, UserID: userID}, nil

	case proto.CommandImage:
		cmd := core.Command{Kind: core.CommandImage}
		var err error
		if cmd.UserID, err = requireID(in.Command, "user_id", in.UserID); err != nil {
			return core.Command{}, err
		}
		if cmd.MessageID, err = requireID(in.Command, "message_id", in.MessageID); err != nil {
			return core.Command{}, err
		}
		if cmd.Text, err = requireString(in.Command, "message", in.Message); err != nil {
			return core.Command{}, err
		}
		if cmd.ImageURL, err = requireString(in.Command, "image_url", in.ImageURL); err != nil {
			return core.Command{}, err
		}
		if cmd.DateSent, err = requireString(in.Command, "date_sent", in.DateSent); err != nil {
			return core.Command{}, err
		}
		return cmd, nil

	default:
		// Anything that is not a signal or an image is a chat message.
		cmd := core.Command{Kind: core.CommandChat}
		var err error
		if cmd.UserID, err = requireID(proto.CommandChat, "user_id", in.UserID); err != nil {
			return core.Command{}, err
		}
		if cmd.NetID, err = requireID(proto.CommandChat, "net_id", in.NetID); err != nil {
			return core.Command{}, err
		}
		if cmd.Text, err = requireString(proto.CommandChat, "message", in.Message); err != nil {
			return core.Command{}, err
		}
		return cmd, nil
	}
}

func requireID(command, field string, id *proto.ID) (int64, error) {
	if id == nil {
		return 0, core.Malformed(command, field, "is required")
	}
	return int64(*id), nil
}

func requireString(command, field string, s *string) (string, error) {
	if s == nil {
		return "", core.Malformed(command, field, "is required")
	}
	return *s, nil
}

func outboundFromDelivery(d *core.Delivery) (any, error) {
	ev := d.Event
	switch ev.Kind {
	case core.EventTyping:
		return proto.TypingFrame{Typing: proto.FlagTrue, UserID: ev.UserID}, nil
	case core.EventDelete:
		return proto.DeleteFrame{Delete: proto.FlagTrue, MessageID: ev.MessageID}, nil
	case core.EventChatMessage:
		return proto.ChatFrame{
			Message:   ev.Message,
			MessageID: ev.MessageID,
			DateSent:  d.DateSent,
			Username:  d.Username,
			UserImage: d.UserImage,
		}, nil
	case core.EventImageMessage:
		return proto.ImageFrame{
			Message:   ev.Message,
			DateSent:  d.DateSent,
			Username:  d.Username,
			UserImage: d.UserImage,
			ImageURL:  ev.ImageURL,
			MessageID: ev.MessageID,
		}, nil
	default:
		return nil, fmt.Errorf("no frame for event kind %s", ev.Kind)
	}
}

func errorFrame(err error) proto.ErrorFrame {
	coreErr := core.ToCoreError(err)
	msg := coreErr.Message
	if coreErr.Code == core.ErrCodeInternal {
		msg = "internal error"
	}
	return proto.ErrorFrame{Error: proto.Error{Code: coreErr.Code, Msg: msg}}
}
