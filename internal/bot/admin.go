package bot

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"kinokod-bot/internal/tg"
	"kinokod-bot/internal/wizard"
)

// Telegram rejects longer media captions.
const maxCaption = 1024

// adminMessage gives the wizard the first look at an admin's message. It
// reports false when the message should be handled as a regular user's.
func (b *Bot) adminMessage(ctx context.Context, msg *tg.Message) (bool, error) {
	adminID, chatID := msg.From.ID, msg.Chat.ID
	switch msg.Command() {
	case "add":
		v, err := b.wizard.StartAdd(ctx, adminID)
		if err != nil {
			return true, b.wizardFailed(ctx, chatID, err)
		}
		return true, b.showWizard(ctx, chatID, 0, v)
	case "edit":
		v, err := b.wizard.StartEdit(ctx, adminID)
		if err != nil {
			return true, b.wizardFailed(ctx, chatID, err)
		}
		return true, b.showWizard(ctx, chatID, 0, v)
	case "cancel":
		if err := b.wizard.Cancel(ctx, adminID); err != nil {
			return true, b.wizardFailed(ctx, chatID, err)
		}
		return true, b.send(ctx, chatID, "❌ Отменено", mainMenu())
	case "start":
		// leaving the dialog through /start is always possible
		if err := b.wizard.Cancel(ctx, adminID); err != nil {
			b.logger(ctx).WithError(err).Warn("drop wizard session")
		}
		return false, nil
	case "":
	default:
		return false, nil
	}

	var ev wizard.Event
	if ref := msg.FileID(); ref != "" {
		ev = wizard.Media(ref, msg.CaptionHTML())
	} else if msg.Text != "" {
		ev = wizard.TextHTML(msg.Text, msg.TextHTML())
	} else {
		return false, nil
	}

	v, err := b.wizard.Handle(ctx, adminID, ev)
	if errors.Is(err, wizard.ErrNoSession) {
		return false, nil
	}
	if err != nil {
		return true, b.wizardFailed(ctx, chatID, err)
	}
	if v.Notice != "" && !v.Done {
		v.Text = v.Notice + "\n\n" + v.Text
	}
	return true, b.showWizard(ctx, chatID, 0, v)
}

func (b *Bot) wizardCallback(ctx context.Context, cq *tg.CallbackQuery, arg string) (reply, error) {
	// items such as "1:2" keep their colons
	action, item, _ := strings.Cut(arg, ":")
	v, err := b.wizard.Handle(ctx, cq.From.ID, wizard.Select(action, item))
	if errors.Is(err, wizard.ErrNoSession) {
		return reply{text: textExpired, alert: true}, nil
	}
	if err != nil {
		return reply{text: textFailed}, err
	}
	r := reply{}
	if v.Notice != "" {
		r = reply{text: v.Notice, alert: true}
	}
	// Media screens are sent fresh; text screens replace the pressed message.
	msgID := cq.Message.MessageID
	if v.Media != "" || v.Done {
		msgID = 0
	}
	return r, b.showWizard(ctx, cq.Message.Chat.ID, msgID, v)
}

func (b *Bot) wizardFailed(ctx context.Context, chatID int64, err error) error {
	b.logger(ctx).WithError(err).Error("wizard session")
	return b.send(ctx, chatID, textFailed, nil)
}

// showWizard renders a wizard view. A non-zero msgID edits that message in
// place when possible.
func (b *Bot) showWizard(ctx context.Context, chatID int64, msgID int, v wizard.View) error {
	if v.Done {
		return b.send(ctx, chatID, v.Text, mainMenu())
	}
	kb := wizardKeyboard(v.Buttons)

	if v.Media != "" {
		req := tg.SendVideoRequest{ChatID: chatID, Video: v.Media, ParseMode: "HTML"}
		if utf8.RuneCountInString(v.Text) > maxCaption {
			if err := b.api.SendVideo(ctx, req); err != nil {
				return err
			}
			return b.send(ctx, chatID, v.Text, markup(kb))
		}
		req.Caption = v.Text
		req.ReplyMarkup = markup(kb)
		return b.api.SendVideo(ctx, req)
	}

	if msgID != 0 {
		err := b.api.EditMessageText(ctx, tg.EditMessageTextRequest{
			ChatID:      chatID,
			MessageID:   msgID,
			Text:        v.Text,
			ParseMode:   "HTML",
			ReplyMarkup: kb,
		})
		if err == nil || tg.IsNotModified(err) {
			return nil
		}
		// The pressed message may be a video, which has no text to edit.
		b.logger(ctx).WithError(err).Debug("edit wizard message, sending a new one")
	}
	return b.send(ctx, chatID, v.Text, markup(kb))
}

// markup keeps a nil keyboard out of the ReplyMarkup interface.
func markup(kb *tg.InlineKeyboardMarkup) tg.ReplyMarkup {
	if kb == nil {
		return nil
	}
	return kb
}
