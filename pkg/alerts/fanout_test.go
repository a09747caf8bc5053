package alerts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestFanoutDeliversToAllChannels(t *testing.T) {
	ctrl := gomock.NewController(t)

	first := NewMockAlertService(ctrl)
	second := NewMockAlertService(ctrl)

	alert := &WebhookAlert{Title: "Abnormal State", Tag: "x"}

	first.EXPECT().Alert(gomock.Any(), alert).Return(nil)
	second.EXPECT().Alert(gomock.Any(), alert).Return(nil)

	fanout := Fanout{first, second}

	assert.NoError(t, fanout.Alert(context.Background(), alert))
}

func TestFanoutSkipsDisabledChannels(t *testing.T) {
	ctrl := gomock.NewController(t)

	disabled := NewMockAlertService(ctrl)
	active := NewMockAlertService(ctrl)

	alert := &WebhookAlert{Tag: "x"}

	disabled.EXPECT().Alert(gomock.Any(), alert).Return(ErrWebhookDisabled)
	active.EXPECT().Alert(gomock.Any(), alert).Return(nil)

	fanout := Fanout{disabled, active}

	assert.NoError(t, fanout.Alert(context.Background(), alert))
}

func TestFanoutAllCooledReportsCooldown(t *testing.T) {
	ctrl := gomock.NewController(t)

	cooled := NewMockAlertService(ctrl)

	alert := &WebhookAlert{Tag: "x"}

	cooled.EXPECT().Alert(gomock.Any(), alert).Return(ErrWebhookCooldown)

	fanout := Fanout{cooled}

	assert.ErrorIs(t, fanout.Alert(context.Background(), alert), ErrWebhookCooldown)
}

func TestFanoutCooldownDoesNotMaskDelivery(t *testing.T) {
	ctrl := gomock.NewController(t)

	cooled := NewMockAlertService(ctrl)
	active := NewMockAlertService(ctrl)

	alert := &WebhookAlert{Tag: "x"}

	cooled.EXPECT().Alert(gomock.Any(), alert).Return(ErrWebhookCooldown)
	active.EXPECT().Alert(gomock.Any(), alert).Return(nil)

	fanout := Fanout{cooled, active}

	assert.NoError(t, fanout.Alert(context.Background(), alert))
}

func TestFanoutPropagatesRealErrors(t *testing.T) {
	ctrl := gomock.NewController(t)

	broken := NewMockAlertService(ctrl)
	active := NewMockAlertService(ctrl)

	alert := &WebhookAlert{Tag: "x"}
	boom := errors.New("connection refused")

	broken.EXPECT().Alert(gomock.Any(), alert).Return(boom)
	active.EXPECT().Alert(gomock.Any(), alert).Return(nil)

	fanout := Fanout{broken, active}

	err := fanout.Alert(context.Background(), alert)
	assert.ErrorIs(t, err, errFailedToSendAlerts)
}

func TestEmptyFanoutIsSilent(t *testing.T) {
	assert.NoError(t, Fanout{}.Alert(context.Background(), &WebhookAlert{Tag: "x"}))
}
