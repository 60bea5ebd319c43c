// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package ubuntu_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/bradsec/debapps/internal/adapters/platform"
	"github.com/bradsec/debapps/internal/adapters/ubuntu"
	"github.com/bradsec/debapps/internal/domain"
	"github.com/bradsec/debapps/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const armoredKey = `-----BEGIN PGP PUBLIC KEY BLOCK-----

mQINBFit2ioBEADhWpZ8/wvZ6hUTiXOwQHXMAlaFHcPH9hAtr4F1y2+OYdbtMuth
-----END PGP PUBLIC KEY BLOCK-----
`

var dockerRepo = domain.APTRepository{
	KeyURL:      "https://download.docker.com/linux/ubuntu/gpg",
	KeyName:     "docker.gpg",
	RepoLine:    "deb [arch=amd64 signed-by=/etc/apt/keyrings/docker.gpg] https://download.docker.com/linux/ubuntu <DISTRO> stable",
	RepoFile:    "docker.list",
	PackageName: "docker-ce",
}

// ranWithSuffix matches commands regardless of proxy options in the environment.
func ranWithSuffix(runner *platform.MockCommandRunner, suffix string) bool {
	for _, c := range runner.Calls() {
		if strings.HasSuffix(c, suffix) {
			return true
		}
	}

	return false
}

func newAPT(t *testing.T, key []byte) (*ubuntu.APT, *platform.MockCommandRunner, string) {
	t.Helper()

	tmp := t.TempDir()
	runner := platform.NewMockCommandRunner(false)

	network := &testutil.MockNetworkClient{}
	network.On("DownloadFile", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			_ = os.WriteFile(args.String(2), key, 0o600)
		}).
		Return(nil)

	apt := ubuntu.NewAPT(ubuntu.APTOptions{
		Runner:  runner,
		Network: network,
		Files:   platform.NewFileManager(nil),
		TempDir: tmp,
	})

	return apt, runner, tmp
}

func TestAddRepositoryDearmorsAndSubstitutesCodename(t *testing.T) {
	t.Parallel()

	apt, runner, tmp := newAPT(t, []byte(armoredKey))

	created, err := apt.AddRepository(context.Background(), dockerRepo, "noble")
	require.NoError(t, err)
	assert.Equal(t, []string{"/etc/apt/keyrings/docker.gpg", "/etc/apt/sources.list.d/docker.list"}, created)

	var dearmored, installedSource bool

	for _, c := range runner.Calls() {
		if strings.HasPrefix(c, "sudo gpg --batch --yes --dearmor -o /etc/apt/keyrings/docker.gpg ") {
			dearmored = true
		}

		if strings.HasPrefix(c, "sudo install -D -m 0644 ") && strings.HasSuffix(c, " /etc/apt/sources.list.d/docker.list") {
			installedSource = true
		}
	}

	assert.True(t, dearmored, "armored keys go through gpg --dearmor: %v", runner.Calls())
	assert.True(t, installedSource)

	// staged files are cleaned up
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAddRepositoryInstallsBinaryKeyVerbatim(t *testing.T) {
	t.Parallel()

	apt, runner, _ := newAPT(t, []byte{0x99, 0x02, 0x0d, 0x04})

	_, err := apt.AddRepository(context.Background(), dockerRepo, "jammy")
	require.NoError(t, err)

	for _, c := range runner.Calls() {
		assert.NotContains(t, c, "--dearmor")
	}

	assert.True(t, ranWithSuffix(runner, " /etc/apt/keyrings/docker.gpg"))
}

func TestAddRepositoryRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      []byte
		repo     domain.APTRepository
		codename string
		wantErr  error
	}{
		{"html instead of key", []byte("<html>404</html>"), dockerRepo, "noble", ubuntu.ErrInvalidKey},
		{"missing codename", []byte(armoredKey), dockerRepo, "", ubuntu.ErrMissingCodename},
		{"path in key name", []byte(armoredKey), withKeyName(dockerRepo, "../../usr/share/keyrings/x.gpg"), "noble", domain.ErrConfig},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			apt, _, _ := newAPT(t, tc.key)

			_, err := apt.AddRepository(context.Background(), tc.repo, tc.codename)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func withKeyName(repo domain.APTRepository, name string) domain.APTRepository {
	repo.KeyName = name
	return repo
}

func TestRenderRepoLine(t *testing.T) {
	t.Parallel()

	line, err := ubuntu.RenderRepoLine(dockerRepo.RepoLine, "noble")
	require.NoError(t, err)
	assert.Equal(t, "deb [arch=amd64 signed-by=/etc/apt/keyrings/docker.gpg] https://download.docker.com/linux/ubuntu noble stable", line)

	plain := "deb [signed-by=/etc/apt/keyrings/sublimehq.gpg] https://download.sublimetext.com/ apt/stable/"
	line, err = ubuntu.RenderRepoLine(plain, "")
	require.NoError(t, err)
	assert.Equal(t, plain, line)
}

func TestCandidateVersion(t *testing.T) {
	t.Parallel()

	runner := platform.NewMockCommandRunner(false)
	runner.SetMockOutput("apt-cache policy wireshark", `wireshark:
  Installed: (none)
  Candidate: 4.2.2-1.1build3
  Version table:
     4.2.2-1.1build3 500
`)
	runner.SetMockOutput("apt-cache policy missing", `missing:
  Installed: (none)
  Candidate: (none)
`)

	apt := ubuntu.NewAPT(ubuntu.APTOptions{Runner: runner})

	v, err := apt.CandidateVersion(context.Background(), "wireshark")
	require.NoError(t, err)
	assert.Equal(t, "4.2.2-1.1build3", v)

	v, err = apt.CandidateVersion(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, "(none)", v)
}

func TestInstalledVersion(t *testing.T) {
	t.Parallel()

	runner := platform.NewMockCommandRunner(false)
	runner.SetMockOutput("dpkg-query -W -f=${Status} code", "install ok installed")
	runner.SetMockOutput("dpkg-query -W -f=${Version} code", "1.96.2-1734607745")
	runner.SetMockOutput("dpkg-query -W -f=${Status} slack-desktop", "deinstall ok config-files")
	runner.SetMockError("dpkg-query -W -f=${Status} nothing", nil)

	apt := ubuntu.NewAPT(ubuntu.APTOptions{Runner: runner})
	ctx := context.Background()

	v, err := apt.InstalledVersion(ctx, "code")
	require.NoError(t, err)
	assert.Equal(t, "1.96.2-1734607745", v)

	installed, err := apt.IsPackageInstalled(ctx, "slack-desktop")
	require.NoError(t, err)
	assert.False(t, installed, "removed packages with leftover config are not installed")

	installed, err = apt.IsPackageInstalled(ctx, "nothing")
	require.NoError(t, err)
	assert.False(t, installed)

	_, err = apt.InstalledVersion(ctx, "nothing")
	require.ErrorIs(t, err, domain.ErrNotInstalled)
}

func TestPackageCommands(t *testing.T) {
	t.Parallel()

	runner := platform.NewMockCommandRunner(false)
	apt := ubuntu.NewAPT(ubuntu.APTOptions{Runner: runner})
	ctx := context.Background()

	require.NoError(t, apt.Update(ctx))
	require.NoError(t, apt.InstallPackages(ctx, "libfuse2t64", "default-jre"))
	require.NoError(t, apt.InstallDebs(ctx, "/tmp/debapps/a.deb", "/tmp/debapps/b.deb"))
	require.NoError(t, apt.FixBroken(ctx))
	require.NoError(t, apt.UpgradePackages(ctx, "code"))
	require.NoError(t, apt.RemovePackages(ctx, "code"))
	require.NoError(t, apt.RemovePackages(ctx))

	for _, suffix := range []string{
		"apt-get update",
		"apt-get install -y libfuse2t64 default-jre",
		"apt-get install -y /tmp/debapps/a.deb /tmp/debapps/b.deb",
		"apt-get --fix-broken install -y",
		"apt-get install --only-upgrade -y code",
		"apt-get remove -y code",
	} {
		assert.True(t, ranWithSuffix(runner, suffix), "missing %q in %v", suffix, runner.Calls())
	}

	assert.Len(t, runner.Calls(), 6, "empty package lists run nothing")
}
