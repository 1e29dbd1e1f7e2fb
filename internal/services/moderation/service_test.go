package moderation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/JohnTitor998/chiya/internal/domain/enums"
	"github.com/JohnTitor998/chiya/internal/domain/model"
)

const (
	staffRole    = "2001"
	trialModRole = "2002"
	mutedRole    = "2003"
	ticketCat    = "3001"
	archiveCat   = "3002"
)

type fakeRepo struct {
	entries []model.ModLogEntry
	err     error
}

func (r *fakeRepo) Insert(_ context.Context, entry model.ModLogEntry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

type sentEmbed struct {
	ChannelID string
	Embed     model.Embed
}

type fakePlatform struct {
	createdChannels []string
	roleReads       []string
	memberReads     []string
	embeds          []sentEmbed
	replies         []sentEmbed
	dms             []model.Embed
	rolesAdded      []string
	rolesRemoved    []string
	movedTo         []string

	dmErr           error
	findChannelID   string
	findChannelErr  error
	createChannelID string
}

func (p *fakePlatform) GuildName() string { return "Test Guild" }

func (p *fakePlatform) CreateChannel(_ context.Context, name, categoryID string) (string, error) {
	p.createdChannels = append(p.createdChannels, name+"@"+categoryID)
	if p.createChannelID == "" {
		return "9000", nil
	}
	return p.createChannelID, nil
}

func (p *fakePlatform) AllowRoleRead(_ context.Context, channelID, roleID string) error {
	p.roleReads = append(p.roleReads, channelID+":"+roleID)
	return nil
}

func (p *fakePlatform) AllowMemberRead(_ context.Context, channelID, userID string) error {
	p.memberReads = append(p.memberReads, channelID+":"+userID)
	return nil
}

func (p *fakePlatform) SendEmbed(_ context.Context, channelID string, embed model.Embed) error {
	p.embeds = append(p.embeds, sentEmbed{ChannelID: channelID, Embed: embed})
	return nil
}

func (p *fakePlatform) SendReply(_ context.Context, channelID, _ string, embed model.Embed) error {
	p.replies = append(p.replies, sentEmbed{ChannelID: channelID, Embed: embed})
	return nil
}

func (p *fakePlatform) SendDirectEmbed(_ context.Context, _ string, embed model.Embed) error {
	if p.dmErr != nil {
		return p.dmErr
	}
	p.dms = append(p.dms, embed)
	return nil
}

func (p *fakePlatform) AddRole(_ context.Context, userID, roleID, _ string) error {
	p.rolesAdded = append(p.rolesAdded, userID+":"+roleID)
	return nil
}

func (p *fakePlatform) RemoveRole(_ context.Context, userID, roleID, _ string) error {
	p.rolesRemoved = append(p.rolesRemoved, userID+":"+roleID)
	return nil
}

func (p *fakePlatform) FindChannelByName(_ context.Context, _, _ string) (string, error) {
	if p.findChannelErr != nil {
		return "", p.findChannelErr
	}
	if p.findChannelID == "" {
		return "9000", nil
	}
	return p.findChannelID, nil
}

func (p *fakePlatform) MoveChannel(_ context.Context, channelID, categoryID string) error {
	p.movedTo = append(p.movedTo, channelID+"->"+categoryID)
	return nil
}

func (p *fakePlatform) sideEffectCount() int {
	return len(p.createdChannels) + len(p.roleReads) + len(p.memberReads) +
		len(p.embeds) + len(p.replies) + len(p.dms) +
		len(p.rolesAdded) + len(p.rolesRemoved) + len(p.movedTo)
}

func testConfig() Config {
	return Config{
		StaffRoleID:       staffRole,
		TrialModRoleID:    trialModRole,
		MutedRoleID:       mutedRole,
		TicketCategoryID:  ticketCat,
		ArchiveCategoryID: archiveCat,
	}
}

func member(id string, topRole int, roles ...string) model.Member {
	return model.Member{ID: id, Username: "user-" + id, TopRole: topRole, RoleIDs: roles}
}

func TestCanAction(t *testing.T) {
	bot := member("1", 10)
	bot.Bot = true

	testCases := []struct {
		name    string
		invoker model.Member
		target  model.Member
		want    bool
	}{
		{"target is bot", member("100", 5), bot, false},
		{"target outranks invoker", member("100", 5), member("200", 7), false},
		{"target ties invoker", member("100", 5), member("200", 5), false},
		{"target outranks bot", member("100", 20), member("200", 12), false},
		{"target ties bot", member("100", 20), member("200", 10), false},
		{"valid action", member("100", 5), member("200", 2), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanAction(tc.invoker, tc.target, bot); got != tc.want {
				t.Fatalf("CanAction = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMuteRejectsByHierarchyWithoutSideEffects(t *testing.T) {
	repo := &fakeRepo{}
	platform := &fakePlatform{}
	svc := NewService(repo, platform, testConfig())

	_, err := svc.Mute(context.Background(), MuteInput{
		Invoker: member("100", 5),
		Target:  member("200", 7),
		Bot:     member("1", 10),
	})
	if !errors.Is(err, ErrHierarchy) {
		t.Fatalf("expected ErrHierarchy, got %v", err)
	}
	if platform.sideEffectCount() != 0 || len(repo.entries) != 0 {
		t.Fatal("rejected mute must not produce side effects")
	}
}

func TestMuteRejectsAlreadyMutedWithoutSideEffects(t *testing.T) {
	repo := &fakeRepo{}
	platform := &fakePlatform{}
	svc := NewService(repo, platform, testConfig())

	_, err := svc.Mute(context.Background(), MuteInput{
		Invoker: member("100", 5),
		Target:  member("200", 2, mutedRole),
		Bot:     member("1", 10),
	})
	if !errors.Is(err, ErrAlreadyMuted) {
		t.Fatalf("expected ErrAlreadyMuted, got %v", err)
	}
	if platform.sideEffectCount() != 0 || len(repo.entries) != 0 {
		t.Fatal("rejected mute must not produce side effects")
	}
}

func TestMuteReasonLengthBoundary(t *testing.T) {
	repo := &fakeRepo{}
	platform := &fakePlatform{}
	svc := NewService(repo, platform, testConfig())

	input := MuteInput{
		Invoker:   member("100", 5),
		Target:    member("200", 2),
		Bot:       member("1", 10),
		ChannelID: "500",
		MessageID: "600",
		Reason:    strings.Repeat("a", 513),
	}
	if _, err := svc.Mute(context.Background(), input); !errors.Is(err, ErrReasonTooLong) {
		t.Fatalf("expected ErrReasonTooLong for 513 chars, got %v", err)
	}
	if platform.sideEffectCount() != 0 {
		t.Fatal("rejected mute must not produce side effects")
	}

	input.Reason = strings.Repeat("a", 512)
	result, err := svc.Mute(context.Background(), input)
	if err != nil {
		t.Fatalf("512 char reason must be accepted: %v", err)
	}
	if result.Reason != input.Reason {
		t.Fatal("reason must be stored unmodified")
	}

	// Length is counted in characters, not bytes.
	input.Reason = strings.Repeat("é", 512)
	if _, err := svc.Mute(context.Background(), input); err != nil {
		t.Fatalf("512 char multi-byte reason must be accepted: %v", err)
	}

	input.Reason = strings.Repeat("é", 513)
	if _, err := svc.Mute(context.Background(), input); !errors.Is(err, ErrReasonTooLong) {
		t.Fatalf("expected ErrReasonTooLong for 513 multi-byte chars, got %v", err)
	}
}

func TestMuteSuccess(t *testing.T) {
	repo := &fakeRepo{}
	platform := &fakePlatform{}
	svc := NewService(repo, platform, testConfig())

	result, err := svc.Mute(context.Background(), MuteInput{
		Invoker:   member("100", 5),
		Target:    member("200", 2),
		Bot:       member("1", 10),
		ChannelID: "500",
		MessageID: "600",
	})
	if err != nil {
		t.Fatalf("mute: %v", err)
	}

	if result.Reason != "No reason provided." {
		t.Fatalf("expected placeholder reason, got %q", result.Reason)
	}
	if result.MuteChannelID != "9000" {
		t.Fatalf("unexpected mute channel %q", result.MuteChannelID)
	}

	if len(platform.createdChannels) != 1 || platform.createdChannels[0] != "mute-200@"+ticketCat {
		t.Fatalf("unexpected channel creation %v", platform.createdChannels)
	}
	wantReads := []string{"9000:" + trialModRole, "9000:" + staffRole}
	for i, want := range wantReads {
		if platform.roleReads[i] != want {
			t.Fatalf("unexpected role read grants %v", platform.roleReads)
		}
	}
	if len(platform.memberReads) != 1 || platform.memberReads[0] != "9000:200" {
		t.Fatalf("unexpected member read grants %v", platform.memberReads)
	}
	if len(platform.dms) != 1 {
		t.Fatalf("expected one dm, got %d", len(platform.dms))
	}
	if len(platform.replies) != 1 || platform.replies[0].ChannelID != "500" {
		t.Fatalf("expected confirmation reply in invoking channel, got %v", platform.replies)
	}
	if len(platform.rolesAdded) != 1 || platform.rolesAdded[0] != "200:"+mutedRole {
		t.Fatalf("expected muted role grant, got %v", platform.rolesAdded)
	}

	if len(repo.entries) != 1 {
		t.Fatalf("expected exactly one mod log entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.Action != enums.ActionMute || entry.UserID != "200" || entry.ModeratorID != "100" {
		t.Fatalf("unexpected mod log entry %+v", entry)
	}
	if entry.Reason != "No reason provided." {
		t.Fatalf("unexpected mod log reason %q", entry.Reason)
	}
}

func TestMuteUndeliverableDMBecomesNotice(t *testing.T) {
	repo := &fakeRepo{}
	platform := &fakePlatform{dmErr: model.ErrUndeliverable}
	svc := NewService(repo, platform, testConfig())

	result, err := svc.Mute(context.Background(), MuteInput{
		Invoker:   member("100", 5),
		Target:    member("200", 2),
		Bot:       member("1", 10),
		ChannelID: "500",
		MessageID: "600",
	})
	if err != nil {
		t.Fatalf("undeliverable dm must not fail the workflow: %v", err)
	}
	if result.Notice == "" {
		t.Fatal("expected notice about undeliverable dm")
	}

	confirmation := platform.replies[0].Embed
	found := false
	for _, field := range confirmation.Fields {
		if field.Name == "Notice:" {
			found = true
		}
	}
	if !found {
		t.Fatal("confirmation embed must carry the notice field")
	}
	if len(repo.entries) != 1 {
		t.Fatalf("expected one mod log entry, got %d", len(repo.entries))
	}
}

func TestMuteOtherDMErrorIsFatal(t *testing.T) {
	repo := &fakeRepo{}
	platform := &fakePlatform{dmErr: errors.New("rate limited")}
	svc := NewService(repo, platform, testConfig())

	_, err := svc.Mute(context.Background(), MuteInput{
		Invoker: member("100", 5),
		Target:  member("200", 2),
		Bot:     member("1", 10),
	})
	if err == nil {
		t.Fatal("non-undeliverable dm error must abort the workflow")
	}
	if len(repo.entries) != 0 {
		t.Fatal("aborted mute must not write a mod log entry")
	}
}

func TestUnmuteRejectsNotMutedWithoutSideEffects(t *testing.T) {
	repo := &fakeRepo{}
	platform := &fakePlatform{}
	svc := NewService(repo, platform, testConfig())

	_, err := svc.Unmute(context.Background(), UnmuteInput{
		Invoker: member("100", 5),
		Target:  member("200", 2),
		Bot:     member("1", 10),
	})
	if !errors.Is(err, ErrNotMuted) {
		t.Fatalf("expected ErrNotMuted, got %v", err)
	}
	if platform.sideEffectCount() != 0 || len(repo.entries) != 0 {
		t.Fatal("rejected unmute must not produce side effects")
	}
}

func TestUnmuteSuccess(t *testing.T) {
	repo := &fakeRepo{}
	platform := &fakePlatform{findChannelID: "9000"}
	svc := NewService(repo, platform, testConfig())

	result, err := svc.Unmute(context.Background(), UnmuteInput{
		Invoker:   member("100", 5),
		Target:    member("200", 2, mutedRole),
		Bot:       member("1", 10),
		ChannelID: "500",
		MessageID: "600",
		Reason:    "appealed",
	})
	if err != nil {
		t.Fatalf("unmute: %v", err)
	}
	if result.Reason != "appealed" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}

	if len(platform.rolesRemoved) != 1 || platform.rolesRemoved[0] != "200:"+mutedRole {
		t.Fatalf("expected muted role removal, got %v", platform.rolesRemoved)
	}
	if len(platform.movedTo) != 1 || platform.movedTo[0] != "9000->"+archiveCat {
		t.Fatalf("expected mute channel archived, got %v", platform.movedTo)
	}
	if len(platform.createdChannels) != 0 {
		t.Fatal("unmute must not create channels")
	}

	if len(repo.entries) != 1 || repo.entries[0].Action != enums.ActionUnmute {
		t.Fatalf("expected one unmute log entry, got %+v", repo.entries)
	}
}

func TestUnmuteArchiveFailureAborts(t *testing.T) {
	repo := &fakeRepo{}
	platform := &fakePlatform{findChannelErr: errors.New("channel gone")}
	svc := NewService(repo, platform, testConfig())

	_, err := svc.Unmute(context.Background(), UnmuteInput{
		Invoker:   member("100", 5),
		Target:    member("200", 2, mutedRole),
		Bot:       member("1", 10),
		ChannelID: "500",
		MessageID: "600",
	})
	if err == nil {
		t.Fatal("expected archive failure to abort")
	}
	if len(repo.entries) != 0 {
		t.Fatal("aborted unmute must not write a mod log entry")
	}
}
