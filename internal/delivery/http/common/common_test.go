package http_common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	usecase_room "github.com/humanbelnik/senryu/internal/usecase/room"
	usecase_round "github.com/humanbelnik/senryu/internal/usecase/round"
	usecase_user "github.com/humanbelnik/senryu/internal/usecase/user"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
)

type CommonUnitSuite struct {
	suite.Suite
}

func (s *CommonUnitSuite) TestStatus(t provider.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", usecase_room.ErrResourceNotFound, http.StatusNotFound},
		{"unauthorized", usecase_user.ErrUnauthorized, http.StatusUnauthorized},
		{"not owner", usecase_room.ErrNotOwner, http.StatusForbidden},
		{"not holder", usecase_round.ErrNotSenryuHolder, http.StatusForbidden},
		{"bad character", usecase_round.ErrInvalidCharacter, http.StatusBadRequest},
		{"locked", usecase_room.ErrRoomLocked, http.StatusConflict},
		{"already submitted", usecase_round.ErrAlreadySubmitted, http.StatusConflict},
		{"lost race", usecase_round.ErrRaceLost, http.StatusConflict},
		{"wrapped", fmt.Errorf("start: %w", usecase_round.ErrRoundComplete), http.StatusConflict},
		{"internal", errors.Join(usecase_room.ErrInternal, errors.New("db down")), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t provider.T) {
			status, message := Status(tc.err)
			assert.Equal(t, tc.expected, status)
			assert.NotEmpty(t, message)
		})
	}
}

func (s *CommonUnitSuite) TestEmptyRoomIsNotReportedAsBadState(t provider.T) {
	err := fmt.Errorf("%w: %w", usecase_round.ErrInvalidState, usecase_round.ErrNoParticipants)

	status, message := Status(err)

	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "room has no participants", message)
}

func TestCommonUnitSuite(t *testing.T) {
	suite.RunSuite(t, new(CommonUnitSuite))
}
