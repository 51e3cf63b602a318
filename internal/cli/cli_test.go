package cli_test

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
	"github.com/vcf-annotator/annotator/internal/cli"
	"github.com/vcf-annotator/annotator/internal/client"
	"github.com/vcf-annotator/annotator/internal/config"
	"github.com/vcf-annotator/annotator/internal/testserver"
)

var _ = Describe("annotator commands", func() {
	var (
		server     *testserver.Server
		dir        string
		configFile string
		vcfPath    string
	)

	run := func(cmd *cobra.Command, args ...string) error {
		cmd.SetArgs(append(args, "--config", configFile))
		cmd.SetOut(GinkgoWriter)
		cmd.SetErr(GinkgoWriter)
		return cmd.ExecuteContext(context.TODO())
	}

	BeforeEach(func() {
		config.Reset()
		GinkgoT().Setenv("ANNOTATOR_POLL_INTERVAL", "20ms")
		DeferCleanup(config.Reset)

		server = testserver.New(client.DefaultFileField)
		DeferCleanup(server.Close)

		dir = GinkgoT().TempDir()
		configFile = filepath.Join(dir, "client.yaml")
		vcfPath = filepath.Join(dir, "sample.vcf")
		Expect(os.WriteFile(vcfPath, []byte("##fileformat=VCFv4.2\n"), 0o600)).To(Succeed())

		server.AddJob(testserver.Job{Timestamp: "T1", ProcessKey: "P1", PID: 1, Statuses: []string{"running", "completed"}})
		server.SetResults("T1", "clinvar", map[string]any{
			"columns": []string{"CHROM", "POS", "CLNSIG"},
			"data": []map[string]any{
				{"CHROM": "1", "POS": "10", "CLNSIG": "Benign"},
				{"CHROM": "1", "POS": "2", "CLNSIG": "Pathogenic"},
				{"CHROM": "2", "POS": "", "CLNSIG": "benign"},
			},
		})
		server.SetDownload("T1", "clinvar", "CHROM,POS,CLNSIG\n")
	})

	It("writes the client config used by later commands", func() {
		Expect(run(cli.NewCmdConfigure(), "--server-url", server.URL)).To(Succeed())

		cfg, err := client.ParseConfigFile(configFile)
		Expect(err).To(BeNil())
		Expect(cfg.Service.Server).To(Equal(server.URL))

		Expect(run(cli.NewCmdStatus(), "P1")).To(Succeed())
		Expect(server.Requests("/process_status/P1")).To(Equal(1))
	})

	It("submits, waits and saves the results", func() {
		out := filepath.Join(dir, "results.csv")
		err := run(cli.NewCmdSubmit(), vcfPath,
			"--server-url", server.URL,
			"--type", "clinvar",
			"--wait",
			"--output", "csv",
			"--file", out,
			"--download-dir", dir,
		)
		Expect(err).To(BeNil())

		f, err := os.Open(out)
		Expect(err).To(BeNil())
		defer f.Close()
		records, err := csv.NewReader(f).ReadAll()
		Expect(err).To(BeNil())
		Expect(records).To(HaveLen(4))
		Expect(records[0]).To(Equal([]string{"CHROM", "POS", "CLNSIG"}))

		Expect(filepath.Join(dir, "clinvar_annotated_variants_T1.csv")).To(BeAnExistingFile())
		Expect(server.Uploads()[0].Directory).To(Equal("/data/dbnsfp"))
		Expect(server.Cancels()).To(BeEmpty())
	})

	It("submits without waiting and leaves the job alone", func() {
		Expect(run(cli.NewCmdSubmit(), vcfPath, "--server-url", server.URL, "--type", "clinvar")).To(Succeed())
		Expect(server.Uploads()).To(HaveLen(1))
		Expect(server.Cancels()).To(BeEmpty())
	})

	It("refuses a submit without a file before calling the server", func() {
		err := run(cli.NewCmdSubmit(), "--server-url", server.URL, "--type", "clinvar")
		Expect(err).NotTo(BeNil())
		Expect(err.Error()).To(Equal("Please select a file first"))
		Expect(server.Requests("/upload")).To(Equal(0))
	})

	It("sorts and filters results", func() {
		out := filepath.Join(dir, "filtered.csv")
		err := run(cli.NewCmdResults(), "T1",
			"--server-url", server.URL,
			"--type", "clinvar",
			"--sort", "POS",
			"--filter", "BENIGN",
			"-o", "csv",
			"--file", out,
		)
		Expect(err).To(BeNil())

		f, err := os.Open(out)
		Expect(err).To(BeNil())
		defer f.Close()
		records, err := csv.NewReader(f).ReadAll()
		Expect(err).To(BeNil())
		Expect(records).To(Equal([][]string{
			{"CHROM", "POS", "CLNSIG"},
			{"2", "", "benign"},
			{"1", "10", "Benign"},
		}))
	})

	It("decides numeric sorting on the rows left by the filter", func() {
		server.SetResults("T2", "vep", map[string]any{
			"columns": []string{"POS", "IMPACT"},
			"data": []map[string]any{
				{"POS": "10", "IMPACT": "benign"},
				{"POS": ".", "IMPACT": "pathogenic"},
				{"POS": "2", "IMPACT": "benign"},
			},
		})

		out := filepath.Join(dir, "sorted.csv")
		err := run(cli.NewCmdResults(), "T2",
			"--server-url", server.URL,
			"--type", "vep",
			"--filter", "benign",
			"--sort", "POS",
			"-o", "csv",
			"--file", out,
		)
		Expect(err).To(BeNil())

		f, err := os.Open(out)
		Expect(err).To(BeNil())
		defer f.Close()
		records, err := csv.NewReader(f).ReadAll()
		Expect(err).To(BeNil())
		Expect(records).To(Equal([][]string{
			{"POS", "IMPACT"},
			{"2", "benign"},
			{"10", "benign"},
		}))
	})

	It("rejects an unknown sort column", func() {
		err := run(cli.NewCmdResults(), "T1", "--server-url", server.URL, "--type", "clinvar", "--sort", "QUAL")
		Expect(err).NotTo(BeNil())
	})

	It("downloads a result file", func() {
		Expect(run(cli.NewCmdDownload(), "T1", "--server-url", server.URL, "--type", "clinvar", "--dir", dir)).To(Succeed())
		content, err := os.ReadFile(filepath.Join(dir, "clinvar_annotated_variants_T1.csv"))
		Expect(err).To(BeNil())
		Expect(string(content)).To(Equal("CHROM,POS,CLNSIG\n"))
	})

	It("cancels a job", func() {
		Expect(run(cli.NewCmdCancel(), "P1", "--server-url", server.URL)).To(Succeed())
		Expect(server.Cancels()).To(Equal([]string{"P1"}))
	})

	It("does not fail when the server refuses the cancel", func() {
		server.Fail("/cancel_process/{key}", testserver.Failure{Code: 400, Message: "Process is not running"})

		Expect(run(cli.NewCmdCancel(), "P1", "--server-url", server.URL)).To(Succeed())
		Expect(server.Requests("/cancel_process/P1")).To(Equal(1))
	})

	It("fails the cancel when the server cannot be reached", func() {
		unreachable := testserver.New(client.DefaultFileField)
		unreachable.Close()

		Expect(run(cli.NewCmdCancel(), "P1", "--server-url", unreachable.URL)).NotTo(Succeed())
	})

	It("needs a process key or a timestamp for status", func() {
		Expect(run(cli.NewCmdStatus(), "--server-url", server.URL)).NotTo(Succeed())
		Expect(run(cli.NewCmdStatus(), "--server-url", server.URL, "--timestamp", "T1")).To(Succeed())
		Expect(server.Requests("/status/T1")).To(Equal(1))
	})
})

var _ = Describe("info command", func() {
	It("resolves the server from the environment", func() {
		config.Reset()
		DeferCleanup(config.Reset)
		GinkgoT().Setenv("ANNOTATOR_SERVER_URL", "http://annotator.example:5000")

		cmd := cli.NewCmdInfo()
		cmd.SetArgs([]string{"--config", filepath.Join(GinkgoT().TempDir(), "absent.yaml"), "-o", "json"})
		Expect(cmd.ExecuteContext(context.TODO())).To(Succeed())
	})

	It("rejects an unknown output format", func() {
		config.Reset()
		DeferCleanup(config.Reset)

		cmd := cli.NewCmdInfo()
		cmd.SetArgs([]string{"--config", filepath.Join(GinkgoT().TempDir(), "absent.yaml"), "-o", "toml"})
		cmd.SetErr(GinkgoWriter)
		Expect(cmd.ExecuteContext(context.TODO())).NotTo(Succeed())
	})
})
