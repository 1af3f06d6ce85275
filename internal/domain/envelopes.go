package domain

// RoutingKey names a stage in the analysis DAG; it is both the AMQP
// routing key and the durable queue name the consumer bound to it
// declares
type RoutingKey string

const (
	RoutingDownloadHTTP           RoutingKey = "download.http"
	RoutingDownloadGit            RoutingKey = "download.git"
	RoutingExtractTargz           RoutingKey = "extract.targz"
	RoutingAnalysisCVSAnaly       RoutingKey = "analysis.cvsanaly"
	RoutingAnalysisPHPLoc         RoutingKey = "analysis.phploc"
	RoutingAnalysisPDepend        RoutingKey = "analysis.pdepend"
	RoutingAnalysisGithubLinguist RoutingKey = "analysis.github-linguist"
)

// DownloadHTTPEnvelope is the body of a download.http message.
type DownloadHTTPEnvelope struct {
	Project          string `json:"project"`
	VersionID        int64  `json:"versionId"`
	FilenamePrefix   string `json:"filenamePrefix"`
	FilenamePostfix  string `json:"filenamePostfix"`
}

// ExtractTargzEnvelope is the body of an extract.targz message.
type ExtractTargzEnvelope struct {
	Project   string `json:"project"`
	VersionID int64  `json:"versionId"`
	FilePath  string `json:"filePath"`
}

// DownloadGitEnvelope is the body of a download.git message.
type DownloadGitEnvelope struct {
	Project  string `json:"project"`
	GitwebID int64  `json:"gitwebId"`
}

// AnalysisEnvelope is the body shared by every analysis.* message: the
// directory the analyzer should run against plus the work record id its
// metrics get keyed on.
type AnalysisEnvelope struct {
	Project   string `json:"project"`
	RecordID  int64  `json:"recordId"`
	Table     string `json:"table"`
	Directory string `json:"directory"`
}
