package gateway_test

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/genialityco/wa-multi-session-backend/citest/testutil"
	"github.com/genialityco/wa-multi-session-backend/internal/session"
)

const frameTimeout = 3 * time.Second

var _ = Describe("Session lifecycle", func() {
	var gw *testutil.Gateway

	BeforeEach(func() {
		var err error
		gw, err = testutil.StartGateway(testutil.GatewayConfig{
			AuthRoot: GinkgoT().TempDir(),
			AutoPair: 20 * time.Millisecond,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		gw.Stop()
	})

	It("walks a fresh session from QR to ready and delivers a message", func() {
		wsc, err := testutil.DialWS(gw.WSURL())
		Expect(err).NotTo(HaveOccurred())
		defer wsc.Close()
		Expect(wsc.Join("tenant-1")).To(Succeed())

		var created map[string]string
		code, err := gw.PostJSON("/api/session", map[string]string{"clientId": "tenant-1"}, &created)
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(http.StatusOK))
		Expect(created["status"]).To(Equal("pending"))
		Expect(created["clientId"]).To(Equal("tenant-1"))

		qr, err := wsc.NextOfType("qr", frameTimeout)
		Expect(err).NotTo(HaveOccurred())
		qrData, err := qr.DataMap()
		Expect(err).NotTo(HaveOccurred())
		Expect(qrData["qr"]).NotTo(BeEmpty())

		status, err := wsc.NextOfType("status", frameTimeout)
		Expect(err).NotTo(HaveOccurred())
		statusData, err := status.DataMap()
		Expect(err).NotTo(HaveOccurred())
		Expect(statusData["status"]).To(Equal("authenticated"))

		status, err = wsc.NextOfType("status", frameTimeout)
		Expect(err).NotTo(HaveOccurred())
		statusData, err = status.DataMap()
		Expect(err).NotTo(HaveOccurred())
		Expect(statusData["status"]).To(Equal("ready"))

		var sent map[string]string
		code, err = gw.PostJSON("/api/send", map[string]string{
			"clientId": "tenant-1",
			"phone":    "52 1 234 567 890",
			"message":  "hola mundo",
		}, &sent)
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(http.StatusOK))
		Expect(sent["status"]).To(Equal("sent"))
		Expect(sent["id"]).To(HavePrefix("true_521234567890@c.us_"))
	})

	It("tears a session down on logout and purges local credentials", func() {
		wsc, err := testutil.DialWS(gw.WSURL())
		Expect(err).NotTo(HaveOccurred())
		defer wsc.Close()
		Expect(wsc.Join("tenant-1")).To(Succeed())

		_, err = gw.PostJSON("/api/session", map[string]string{"clientId": "tenant-1"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(gw.WaitForStatus("tenant-1", session.StatusReady, frameTimeout)).To(Succeed())

		var out map[string]string
		code, err := gw.PostJSON("/api/logout", map[string]string{"clientId": "tenant-1"}, &out)
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(http.StatusOK))
		Expect(out["status"]).To(Equal("logout"))

		cleaned, err := wsc.NextOfType("session_cleaned", frameTimeout)
		Expect(err).NotTo(HaveOccurred())
		cleanedData, err := cleaned.DataMap()
		Expect(err).NotTo(HaveOccurred())
		Expect(cleanedData["status"]).To(Equal("cleaned"))
		Expect(cleanedData["motivo"]).To(Equal("logout_manual"))

		Expect(gw.WaitForRemoval("tenant-1", frameTimeout)).To(Succeed())

		// The local backend purges on teardown.
		Eventually(func() bool {
			_, err := os.Stat(filepath.Join(gw.Store.Root(), "tenant-1"))
			return os.IsNotExist(err)
		}, frameTimeout, 10*time.Millisecond).Should(BeTrue())
	})

	It("keeps rooms isolated between tenants", func() {
		wsA, err := testutil.DialWS(gw.WSURL())
		Expect(err).NotTo(HaveOccurred())
		defer wsA.Close()
		Expect(wsA.Join("tenant-a")).To(Succeed())

		wsB, err := testutil.DialWS(gw.WSURL())
		Expect(err).NotTo(HaveOccurred())
		defer wsB.Close()
		Expect(wsB.Join("tenant-b")).To(Succeed())

		_, err = gw.PostJSON("/api/session", map[string]string{"clientId": "tenant-a"}, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = wsA.NextOfType("qr", frameTimeout)
		Expect(err).NotTo(HaveOccurred())

		// tenant-b's subscriber sees nothing from tenant-a's handshake.
		_, err = wsB.Next(200 * time.Millisecond)
		Expect(err).To(HaveOccurred())
	})

	It("hands a late subscriber a synthetic ready", func() {
		_, err := gw.PostJSON("/api/session", map[string]string{"clientId": "tenant-1"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(gw.WaitForStatus("tenant-1", session.StatusReady, frameTimeout)).To(Succeed())

		wsc, err := testutil.DialWS(gw.WSURL())
		Expect(err).NotTo(HaveOccurred())
		defer wsc.Close()
		Expect(wsc.Join("tenant-1")).To(Succeed())

		status, err := wsc.NextOfType("status", frameTimeout)
		Expect(err).NotTo(HaveOccurred())
		data, err := status.DataMap()
		Expect(err).NotTo(HaveOccurred())
		Expect(data["status"]).To(Equal("ready"))
	})

	It("lists registered sessions with their status", func() {
		_, err := gw.PostJSON("/api/session", map[string]string{"clientId": "tenant-1"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(gw.WaitForStatus("tenant-1", session.StatusReady, frameTimeout)).To(Succeed())

		var got []session.Summary
		code, err := gw.GetJSON("/api/sessions", &got)
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(http.StatusOK))
		Expect(got).To(HaveLen(1))
		Expect(got[0].ClientID).To(Equal("tenant-1"))
		Expect(string(got[0].Status)).To(Equal("ready"))
	})
})

var _ = Describe("Session restore", func() {
	It("restores a paired session without a new QR scan", func() {
		authRoot := GinkgoT().TempDir()

		first, err := testutil.StartGateway(testutil.GatewayConfig{
			AuthRoot: authRoot,
			AutoPair: 20 * time.Millisecond,
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = first.PostJSON("/api/session", map[string]string{"clientId": "tenant-1"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.WaitForStatus("tenant-1", session.StatusReady, frameTimeout)).To(Succeed())

		// Process shutdown keeps credentials so the session can come back.
		first.Stop()

		second, err := testutil.StartGateway(testutil.GatewayConfig{
			AuthRoot: authRoot,
		})
		Expect(err).NotTo(HaveOccurred())
		defer second.Stop()

		wsc, err := testutil.DialWS(second.WSURL())
		Expect(err).NotTo(HaveOccurred())
		defer wsc.Close()
		Expect(wsc.Join("tenant-1")).To(Succeed())

		_, err = second.PostJSON("/api/session", map[string]string{"clientId": "tenant-1"}, nil)
		Expect(err).NotTo(HaveOccurred())

		status, err := wsc.NextOfType("status", frameTimeout)
		Expect(err).NotTo(HaveOccurred())
		data, err := status.DataMap()
		Expect(err).NotTo(HaveOccurred())
		Expect(data["status"]).To(Equal("ready"))
		Expect(second.WaitForStatus("tenant-1", session.StatusReady, frameTimeout)).To(Succeed())
	})
})
