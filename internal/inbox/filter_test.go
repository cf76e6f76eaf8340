package inbox

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/counselhub/inbox-sync/internal/model"
)

func TestVisibilityStudentModule(t *testing.T) {
	vis := VisibilityFor("u1", model.RoleStudent)

	tests := []struct {
		name    string
		msg     model.Message
		visible bool
	}{
		{
			name: "own message to counselor",
			msg: model.Message{
				SenderKind: model.RoleStudent, SenderID: "u1",
				RecipientID: "c1", RecipientRole: model.RoleCounselor,
			},
			visible: true,
		},
		{
			name: "own message to teacher",
			msg: model.Message{
				SenderKind: model.RoleStudent, SenderID: "u1",
				RecipientID: "t1", RecipientRole: model.RoleTeacher,
			},
			visible: false,
		},
		{
			name: "counselor message to me",
			msg: model.Message{
				SenderKind: model.RoleCounselor, SenderID: "c1",
				RecipientID: "u1", RecipientRole: model.RoleStudent,
			},
			visible: true,
		},
		{
			name: "counselor message to someone else",
			msg: model.Message{
				SenderKind: model.RoleCounselor, SenderID: "c1",
				RecipientID: "u2", RecipientRole: model.RoleStudent,
			},
			visible: false,
		},
		{
			name: "teacher message to me is not my peer",
			msg: model.Message{
				SenderKind: model.RoleTeacher, SenderID: "t1",
				RecipientID: "u1",
			},
			visible: false,
		},
		{
			name:    "system message always visible",
			msg:     model.Message{SenderKind: model.RoleSystem, SenderID: "sys"},
			visible: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.visible, vis.Visible(&tt.msg))
		})
	}
}

func TestVisibilityCounselorModule(t *testing.T) {
	vis := VisibilityFor("c1", model.RoleCounselor)

	student := model.Message{
		SenderKind: model.RoleStudent, SenderID: "u1",
		RecipientID: "c1", RecipientRole: model.RoleCounselor,
	}
	guardian := model.Message{
		SenderKind: model.RoleGuardian, SenderID: "g1",
		RecipientID: "c1", RecipientRole: model.RoleCounselor,
	}
	ownToStudent := model.Message{
		SenderKind: model.RoleCounselor, SenderID: "c1",
		RecipientID: "u1", RecipientRole: model.RoleStudent,
	}
	otherCounselors := model.Message{
		SenderKind: model.RoleCounselor, SenderID: "c2",
		RecipientID: "u1", RecipientRole: model.RoleStudent,
	}

	assert.True(t, vis.Visible(&student))
	assert.True(t, vis.Visible(&guardian))
	assert.True(t, vis.Visible(&ownToStudent))
	assert.False(t, vis.Visible(&otherCounselors))
}

func TestVisibilityApplyPreservesOrder(t *testing.T) {
	vis := VisibilityFor("u1", model.RoleStudent)

	msgs := []model.Message{
		{ID: "1", SenderKind: model.RoleCounselor, SenderID: "c1", RecipientID: "u1"},
		{ID: "2", SenderKind: model.RoleCounselor, SenderID: "c1", RecipientID: "u2"},
		{ID: "3", SenderKind: model.RoleSystem},
		{ID: "4", SenderKind: model.RoleStudent, SenderID: "u1", RecipientID: "c1", RecipientRole: model.RoleCounselor},
	}

	got := vis.Apply(msgs)
	ids := make([]string, len(got))
	for i, m := range got {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"1", "3", "4"}, ids)
}
