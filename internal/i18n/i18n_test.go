package i18n

import "testing"

func clearLocaleEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LANGUAGE", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "")
}

func TestDetectLanguage(t *testing.T) {
	t.Run("LANGUAGE has highest priority", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "zh_CN.UTF-8:en_US")
		t.Setenv("LC_ALL", "de_DE.UTF-8")
		if got := detectLanguage(); got != "zh_CN" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "zh_CN")
		}
	})

	t.Run("C and POSIX are skipped", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LC_ALL", "POSIX")
		t.Setenv("LANG", "C")
		if got := detectLanguage(); got != "en" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "en")
		}
	})
}

func TestNormalize(t *testing.T) {
	for in, want := range map[string]string{
		"zh":          "zh_CN",
		"zh-cn":       "zh_CN",
		"zh_CN.UTF-8": "zh_CN",
		"en_US":       "en_US",
		"EN":          "en",
	} {
		if got := normalize(in); got != want {
			t.Errorf("normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSyncSummaryChinese(t *testing.T) {
	c := New("zh")
	if got, want := c.SyncSummary(2, 1, 0), "已同步 2 个修改，删除 1 个句子"; got != want {
		t.Errorf("SyncSummary = %q, want %q", got, want)
	}
	if got := c.SyncSummary(0, 0, 3); got != "已新增 3 个句子" {
		t.Errorf("SyncSummary = %q", got)
	}
	if got := c.SyncSummary(0, 0, 0); got != "同步完成" {
		t.Errorf("SyncSummary = %q", got)
	}
	if got := c.T("Sync failed: %s", "timeout"); got != "同步失败: timeout" {
		t.Errorf("T = %q", got)
	}
}

func TestSyncSummaryPassthrough(t *testing.T) {
	c := New("en")
	if got, want := c.SyncSummary(1, 0, 2), "Sentences updated: 1 synced, 2 added"; got != want {
		t.Errorf("SyncSummary = %q, want %q", got, want)
	}

	var nilCatalog *Catalog
	if got := nilCatalog.N("%d deleted", "%d deleted", 4, 4); got != "4 deleted" {
		t.Errorf("nil catalog N = %q", got)
	}
	if nilCatalog.Lang() != "en" {
		t.Error("nil catalog language")
	}
}
