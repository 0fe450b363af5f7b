package normalise

import (
	"regexp"
	"sort"
)

// Attribute tables drive the typed conversion of ClassAd attrs into
// destination field types. Attrs not listed anywhere are stored as
// keyword strings.

func set(names ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// textAttrs holds attrs that need full text search; everything else
// string-typed is stored as a keyword.
var textAttrs = set()

var indexedKeywordAttrs = set(
	"AccountingGroup",
	"AcctGroup",
	"AcctGroupUser",
	"AssignedGPUs",
	"AutoClusterId",
	"BatchQueue",
	"CloudLabelNames",
	"ConcurrencyLimits",
	"CondorPlatform",
	"CondorVersion",
	"DAGNodeName",
	"DAGParentNodeNames",
	"DockerImage",
	"FileSystemDomain",
	"GLIDEIN_Entry_Name",
	"GlideinClient",
	"GlideinEntryName",
	"GlideinFactory",
	"GlideinFrontendName",
	"GlideinName",
	"GlobalJobId",
	"GridJobId",
	"GridJobStatus",
	"GridResource",
	"JobBatchName",
	"JobDescription",
	"JobKeyword",
	"JobState",
	"KillSig",
	"LastRemoteHost",
	"LastRemotePool",
	"Machine",
	"MyType",
	"NTDomain",
	"OAuthServicesNeeded",
	"Owner",
	"ProjectName",
	"RemoteHost",
	"RemotePool",
	"RemoveKillSig",
	"ScheddName",
	"ShouldTransferFiles",
	"SingularityImage",
	"StartdName",
	"StartdSlot",
	"Status",
	"SubmitterGlobalJobId",
	"SubmitterGroup",
	"SubmitterNegotiatingGroup",
	"TargetType",
	"Universe",
	"User",
	"WhenToTransferOutput",
	"x509UserProxyEmail",
	"x509UserProxyFQAN",
	"x509UserProxyFirstFQAN",
	"x509UserProxySubject",
	"x509UserProxyVOName",
)

var noindexKeywordAttrs = set(
	"AllRemoteHosts",
	"Args",
	"Arguments",
	"Cmd",
	"DAGManNodesLog",
	"DAGManNodesMask",
	"DontEncryptInputFiles",
	"DontEncryptOutputFiles",
	"EncryptInputFiles",
	"EncryptOutputFiles",
	"Err",
	"ExitReason",
	"HoldReason",
	"In",
	"Iwd",
	"LastHoldReason",
	"LastRejMatchReason",
	"NotifyUser",
	"OtherJobRemoveRequirements",
	"Out",
	"OutputDestination",
	"PostCmd",
	"PreCmd",
	"PublicInputFiles",
	"ReleaseReason",
	"RemoteIwd",
	"RemoveReason",
	"Requirements",
	"RootDir",
	"StartdIpAddr",
	"StartdPrincipal",
	"StarterIpAddr",
	"StarterPrincipal",
	"SubmitEventNotes",
	"TransferCheckpoint",
	"TransferInput",
	"TransferInputRemaps",
	"TransferIntermediate",
	"TransferOutput",
	"TransferOutputRemaps",
	"TransferPlugins",
	"UserLog",
)

var floatAttrs = set(
	"CPUsUsage",
	"JobBatchId",
	"JobDuration",
	"NetworkInputMb",
	"NetworkOutputMb",
	"Rank",
)

var intAttrs = set(
	"AutoClusterId",
	"BlockReadKbytes",
	"BlockReads",
	"BlockWriteKbytes",
	"BlockWrites",
	"BufferBlockSize",
	"BufferSize",
	"BytesRecvd",
	"BytesSent",
	"ClusterId",
	"CommittedSlotTime",
	"CommittedSuspensionTime",
	"CommittedTime",
	"CoreSize",
	"CpusProvisioned",
	"CumulativeRemoteSysCpu",
	"CumulativeRemoteUserCpu",
	"CumulativeSlotTime",
	"CumulativeSuspensionTime",
	"CumulativeTransferTime",
	"CurrentHosts",
	"DAGManJobId",
	"DelegatedProxyExpiration",
	"DiskProvisioned",
	"DiskUsage",
	"DiskUsage_RAW",
	"ErrSize",
	"ExecutableSize_RAW",
	"ExitCode",
	"ExitSignal",
	"ExitStatus",
	"GpusProvisioned",
	"HoldReasonCode",
	"HoldReasonSubCode",
	"IOWait",
	"ImageSize",
	"ImageSize_RAW",
	"JobLeaseDuration",
	"JobMaxRetries",
	"JobMaxVacateTime",
	"JobPid",
	"JobPrio",
	"JobRunCount",
	"JobStatus",
	"JobSuccessExitCode",
	"JobUniverse",
	"KeepClaimIdle",
	"LastHoldReasonCode",
	"LastHoldReasonSubCode",
	"LastJobStatus",
	"LocalSysCpu",
	"LocalUserCpu",
	"MachineAttrCpus0",
	"MachineAttrSlotWeight0",
	"MaxHosts",
	"MaxJobRetirementTime",
	"MaxTransferInputMB",
	"MaxTransferOutputMB",
	"MaxWallTimeMins",
	"MaxWallTimeMins_RAW",
	"MemoryProvisioned",
	"MemoryUsage",
	"MinHosts",
	"NextJobStartDelay",
	"NumCkpts",
	"NumCkpts_RAW",
	"NumJobCompletions",
	"NumJobMatches",
	"NumJobReconnects",
	"NumJobStarts",
	"NumPids",
	"NumRestarts",
	"NumShadowExceptions",
	"NumShadowStarts",
	"NumSystemHolds",
	"OrigMaxHosts",
	"OutSize",
	"PilotRestLifeTimeMins",
	"PostCmdExitCode",
	"PostCmdExitSignal",
	"PostJobPrio1",
	"PostJobPrio2",
	"PreCmdExitCode",
	"PreCmdExitSignal",
	"PreJobPrio1",
	"PreJobPrio2",
	"ProcId",
	"ProportionalSetSizeKb",
	"RecentBlockReadKbytes",
	"RecentBlockReads",
	"RecentBlockWriteKbytes",
	"RecentBlockWrites",
	"RecentStatsLifetimeStarter",
	"RemoteSlotID",
	"RemoteSysCpu",
	"RemoteUserCpu",
	"RemoteWallClockTime",
	"RequestCpus",
	"RequestDisk",
	"RequestGpus",
	"RequestMemory",
	"RequestVirtualMemory",
	"ResidentSetSize",
	"ResidentSetSize_RAW",
	"ScratchDirFileCount",
	"StackSize",
	"StatsLifetimeStarter",
	"SuccessCheckpointExitCode",
	"SuccessCheckpointExitSignal",
	"SuccessPostExitCode",
	"SuccessPostExitSignal",
	"SuccessPreExitCode",
	"SuccessPreExitSignal",
	"TotalSubmitProcs",
	"TotalSuspensions",
	"TransferInputSizeMB",
	"WallClockCheckpoint",
	"WindowsBuildNumber",
	"WindowsMajorVersion",
	"WindowsMinorVersion",
)

var dateAttrs = set(
	"CompletionDate",
	"EnteredCurrentStatus",
	"GLIDEIN_ToDie",
	"GLIDEIN_ToRetire",
	"JobCurrentFinishTransferInputDate",
	"JobCurrentFinishTransferOutputDate",
	"JobCurrentStartDate",
	"JobCurrentStartExecutingDate",
	"JobCurrentStartTransferInputDate",
	"JobCurrentStartTransferOutputDate",
	"JobDisconnectedDate",
	"JobFinishedHookDone",
	"JobLastStartDate",
	"JobLeaseExpiration",
	"JobQueueBirthdate",
	"JobStartDate",
	"LastHeardFrom",
	"LastJobLeaseRenewal",
	"LastMatchTime",
	"LastRejMatchTime",
	"LastRemoteStatusUpdate",
	"LastSuspensionTime",
	"LastVacateTime",
	"LastVacateTime_RAW",
	"QDate",
	"RecordTime",
	"ShadowBday",
	"StageInFinish",
	"StageInStart",
	"StageOutFinish",
	"StageOutStart",
	"TransferInFinished",
	"TransferInQueued",
	"TransferInStarted",
	"TransferOutFinished",
	"TransferOutQueued",
	"TransferOutStarted",
)

var boolAttrs = set(
	"CurrentStatusUnknown",
	"EncryptExecuteDirectory",
	"ExitBySignal",
	"GlobusResubmit",
	"IsNoopJob",
	"JobCoreDumped",
	"LeaveJobInQueue",
	"NiceUser",
	"Nonessential",
	"OnExitHold",
	"OnExitRemove",
	"PeriodicHold",
	"PeriodicRelease",
	"PeriodicRemove",
	"PostCmdExitBySignal",
	"PreCmdExitBySignal",
	"PreserveRelativeExecutable",
	"PreserveRelativePaths",
	"RunAsOwner",
	"SendCredential",
	"SpoolOnEvict",
	"StreamErr",
	"StreamOut",
	"SuccessCheckpointExitBySignal",
	"SuccessPostExitBySignal",
	"SuccessPreExitBySignal",
	"TerminationPending",
	"TransferErr",
	"TransferExecutable",
	"TransferIn",
	"TransferOut",
	"TransferQueued",
	"TransferringInput",
	"TransferringOutput",
	"Use_x509UserProxy",
	"UserLogUseXML",
	"WantCheckpoint",
	"WantGracefulRemoval",
	"WantIOProxy",
	"WantMatchDiagnostics",
	"WantParallelScheduling",
	"WantRemoteIO",
	"WantRemoteSyscalls",
)

// ignoreAttrs never reach the destination: credentials, environment
// blobs and other attrs with no analytics value.
var ignoreAttrs = set(
	"BoincAuthenticatorFile",
	"ClaimId",
	"CmdHash",
	"EC2AccessKeyId",
	"EC2KeyPair",
	"EC2KeyPairFile",
	"EC2SecretAccessKey",
	"EC2SecurityGroups",
	"EC2SecurityIDs",
	"EC2UserData",
	"EC2UserDataFile",
	"Env",
	"EnvDelim",
	"Environment",
	"ExecutableSize",
	"GceAuthFile",
	"GceJsonFile",
	"GceMetadataFile",
	"GlideinCredentialIdentifier",
	"GlideinSecurityClass",
	"JobCoreFileName",
	"JobNotification",
	"LastPublicClaimId",
	"PostArgs",
	"PostArguments",
	"PostEnv",
	"PostEnvironment",
	"PreArgs",
	"PreArguments",
	"PreEnv",
	"PreEnvironment",
	"PublicClaimId",
	"ScitokensFile",
	"SpooledOutputFiles",
	"orig_environment",
	"osg_environment",
)

// Auto-typed attr patterns. Attrs matching these are typed without
// being listed explicitly.
var (
	reDateAttr       = regexp.MustCompile(`^.*Date$`)
	reProvisioned    = regexp.MustCompile(`^.*Provisioned$`)
	reResourceReq    = regexp.MustCompile(`^Request[A-Z].*$`)
	reTargetBool     = regexp.MustCompile(`^(Want|Has|Is)[A-Z_].*$`)
	reCaseDate       = regexp.MustCompile(`^(.*)(Date)$`)
	reCaseProvision  = regexp.MustCompile(`^(.*)(Provisioned)$`)
	reCaseRequest    = regexp.MustCompile(`^(Request)([A-Za-df-z].*)$`) // skips "Requested"
	reCaseTargetBool = regexp.MustCompile(`(?i)^(Want|Has|Is)([A-Z_].*)$`)
)

// caseAutoRes is the order auto-typed patterns are tried when
// normalising the casing of unknown attrs.
var caseAutoRes = []*regexp.Regexp{
	reCaseDate, reCaseProvision, reCaseRequest, reCaseTargetBool,
}

// jobStatusNames maps JobStatus codes to readable names.
var jobStatusNames = map[int64]string{
	0: "Unexpanded",
	1: "Idle",
	2: "Running",
	3: "Removed",
	4: "Completed",
	5: "Held",
	6: "Error",
}

// jobUniverseNames maps JobUniverse codes to readable names.
var jobUniverseNames = map[int64]string{
	1:  "Standard",
	2:  "Pipe",
	3:  "Linda",
	4:  "PVM",
	5:  "Vanilla",
	6:  "PVMD",
	7:  "Scheduler",
	8:  "MPI",
	9:  "Grid",
	10: "Java",
	11: "Parallel",
	12: "Local",
}

// Sorted attr name accessors feed the destination index mappings.

func TextAttrNames() []string           { return sortedNames(textAttrs) }
func IndexedKeywordAttrNames() []string { return sortedNames(indexedKeywordAttrs) }
func NoindexKeywordAttrNames() []string { return sortedNames(noindexKeywordAttrs) }
func FloatAttrNames() []string          { return sortedNames(floatAttrs) }
func IntAttrNames() []string            { return sortedNames(intAttrs) }
func DateAttrNames() []string           { return sortedNames(dateAttrs) }
func BoolAttrNames() []string           { return sortedNames(boolAttrs) }

func sortedNames(s map[string]struct{}) []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// knownAttrCase maps casefolded attr names to their canonical casing.
// Built once; the tables above are never mutated after init.
var knownAttrCase = buildKnownAttrCase()

func buildKnownAttrCase() map[string]string {
	out := make(map[string]string)
	for _, s := range []map[string]struct{}{
		textAttrs, indexedKeywordAttrs, noindexKeywordAttrs,
		floatAttrs, intAttrs, dateAttrs, boolAttrs, ignoreAttrs,
	} {
		for name := range s {
			out[foldCase(name)] = name
		}
	}
	return out
}
