package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/ligerdb/errs"
	"github.com/erigontech/ligerdb/session"
)

type fakeAuth struct {
	anon   bool
	editor bool
	allow  bool
}

func (a fakeAuth) IsAnonymous() bool   { return a.anon }
func (a fakeAuth) HasEditorRole() bool { return a.editor }
func (a fakeAuth) IsAllowed(action session.Action, base session.Base, ns, db string) bool {
	return a.allow
}

func TestNewDefaults(t *testing.T) {
	o := session.New()
	require.Equal(t, uint32(session.DefaultMaxComputationDepth), o.Dive)
	require.True(t, o.Perms)
}

func TestNsDbRequiresBoth(t *testing.T) {
	o := session.New()
	_, _, err := o.NsDb()
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindNsEmpty))

	o = o.WithNS("test")
	_, _, err = o.NsDb()
	require.True(t, errs.Is(err, errs.KindDbEmpty))

	o = o.WithDB("test")
	ns, db, err := o.NsDb()
	require.NoError(t, err)
	require.Equal(t, "test", ns)
	require.Equal(t, "test", db)
}

func TestDiveExceedsBudget(t *testing.T) {
	o := session.New().WithMaxComputationDepth(2)
	o1, err := o.Dive(1)
	require.NoError(t, err)
	require.Equal(t, uint32(1), o1.Dive)

	o2, err := o1.Dive(1)
	require.NoError(t, err)
	require.Equal(t, uint32(0), o2.Dive)

	_, err = o2.Dive(1)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindComputationDepthExceeded))
}

func TestDiveIsImmutable(t *testing.T) {
	o := session.New()
	o2, err := o.Dive(5)
	require.NoError(t, err)
	require.NotEqual(t, o.Dive, o2.Dive)
	require.Equal(t, uint32(session.DefaultMaxComputationDepth), o.Dive)
}

func TestCheckPermsBypassWhenDisabled(t *testing.T) {
	o := session.New().WithPerms(false)
	require.NoError(t, o.CheckPerms(session.ActionView))
}

func TestCheckPermsBypassAnonymous(t *testing.T) {
	o := session.New()
	o.Auth = fakeAuth{anon: true}
	require.NoError(t, o.CheckPerms(session.ActionView))
}

func TestCheckPermsEditorBypassForEdit(t *testing.T) {
	o := session.New()
	o.Auth = fakeAuth{editor: true}
	require.NoError(t, o.CheckPerms(session.ActionEdit))
}

func TestCheckPermsRequiresRowCheckOtherwise(t *testing.T) {
	o := session.New()
	o.Auth = fakeAuth{}
	err := o.CheckPerms(session.ActionView)
	require.Error(t, err)
	require.True(t, session.RequiresRowCheck(err))
}

func TestIsAllowedDelegates(t *testing.T) {
	o := session.New()
	o.Auth = fakeAuth{allow: true}
	require.True(t, o.IsAllowed(session.ActionView, session.BaseDb))

	o.Auth = fakeAuth{allow: false}
	require.False(t, o.IsAllowed(session.ActionView, session.BaseDb))
}

func TestSelectedBase(t *testing.T) {
	o := session.New()
	require.Equal(t, session.BaseRoot, o.SelectedBase())
	o = o.WithNS("n")
	require.Equal(t, session.BaseNs, o.SelectedBase())
	o = o.WithDB("d")
	require.Equal(t, session.BaseDb, o.SelectedBase())
}

func TestRealtimeRequiresLiveAndSender(t *testing.T) {
	o := session.New()
	require.False(t, o.Realtime())
	o.Live = true
	require.False(t, o.Realtime())
	ch := make(chan session.Notification, 1)
	o.Notify = ch
	require.True(t, o.Realtime())
}
